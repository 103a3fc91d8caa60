package usecases

import (
	"context"
	"errors"
	"fmt"

	"checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	apperrors "checkoutgo/internal/shared/errors"
	"checkoutgo/internal/shared/logger"
)

type VerifyReturnResult struct {
	Paid bool
	// RedirectURL is where to send the customer next: the merchant's
	// callback URL on success, the error URL otherwise.
	RedirectURL string
}

// VerifyReturnUseCase handles the customer landing back on our return URL
// after the provider's hosted page. The redirect itself proves nothing;
// payment state comes from the gateway's verification call, and fulfillment
// still races the webhook through the same claim.
type VerifyReturnUseCase struct {
	checkoutRepo checkout.CheckoutRepository
	gateways     *gateway.Registry
	confirm      *ProcessConfirmationUseCase
	logger       logger.Interface
}

func NewVerifyReturnUseCase(
	checkoutRepo checkout.CheckoutRepository,
	gateways *gateway.Registry,
	confirm *ProcessConfirmationUseCase,
	logger logger.Interface,
) *VerifyReturnUseCase {
	return &VerifyReturnUseCase{
		checkoutRepo: checkoutRepo,
		gateways:     gateways,
		confirm:      confirm,
		logger:       logger,
	}
}

func (uc *VerifyReturnUseCase) Execute(ctx context.Context, reference string, params map[string]string) (*VerifyReturnResult, error) {
	co, err := uc.checkoutRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, checkout.ErrCheckoutNotFound) {
			return nil, apperrors.NewNotFoundError("checkout not found", reference)
		}
		return nil, fmt.Errorf("failed to load checkout: %w", err)
	}

	if co.Status().IsPaid() {
		return &VerifyReturnResult{Paid: true, RedirectURL: co.CallbackURL()}, nil
	}

	gw, err := uc.gateways.Get(co.Provider())
	if err != nil {
		return nil, fmt.Errorf("provider not configured: %w", err)
	}

	conf, err := gw.VerifyReturn(ctx, co, params)
	if err != nil {
		uc.logger.Warnw("return verification failed",
			"reference", reference,
			"provider", co.Provider().String(),
			"error", err,
		)
		return &VerifyReturnResult{Paid: false, RedirectURL: co.ErrorURL()}, nil
	}

	if err := uc.confirm.Execute(ctx, co, conf); err != nil {
		uc.logger.Errorw("failed to process return confirmation", "reference", reference, "error", err)
		return &VerifyReturnResult{Paid: false, RedirectURL: co.ErrorURL()}, nil
	}

	if conf.Event == gateway.EventPaymentSucceeded {
		return &VerifyReturnResult{Paid: true, RedirectURL: co.CallbackURL()}, nil
	}
	return &VerifyReturnResult{Paid: false, RedirectURL: co.ErrorURL()}, nil
}
