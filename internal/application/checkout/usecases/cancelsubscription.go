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

type CancelSubscriptionUseCase struct {
	checkoutRepo checkout.CheckoutRepository
	gateways     *gateway.Registry
	logger       logger.Interface
}

func NewCancelSubscriptionUseCase(
	checkoutRepo checkout.CheckoutRepository,
	gateways *gateway.Registry,
	logger logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		checkoutRepo: checkoutRepo,
		gateways:     gateways,
		logger:       logger,
	}
}

// Execute downgrades the subscription locally and makes a best-effort
// attempt to cancel it provider-side. Provider failures are logged and never
// block the downgrade; paid stays true.
func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, reference string) error {
	co, err := uc.checkoutRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, checkout.ErrCheckoutNotFound) {
			return apperrors.NewNotFoundError("checkout not found", reference)
		}
		return fmt.Errorf("failed to load checkout: %w", err)
	}

	if !co.PaymentType().IsRecurring() {
		return apperrors.NewValidationError("checkout is not recurring", reference)
	}

	gw, err := uc.gateways.Get(co.Provider())
	if err != nil {
		return fmt.Errorf("provider not configured: %w", err)
	}

	if err := gw.CancelSubscription(ctx, co); err != nil {
		uc.logger.Warnw("provider cancellation failed, downgrading locally",
			"reference", reference,
			"provider", co.Provider().String(),
			"error", err,
		)
	}

	if err := co.MarkCancelled(); err != nil {
		return apperrors.NewConflictError("cannot cancel checkout", err.Error())
	}
	if err := uc.checkoutRepo.Update(ctx, co); err != nil {
		return fmt.Errorf("failed to update checkout: %w", err)
	}

	uc.logger.Infow("subscription cancelled", "reference", reference, "provider", co.Provider().String())
	return nil
}
