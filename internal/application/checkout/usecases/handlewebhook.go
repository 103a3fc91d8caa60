package usecases

import (
	"context"
	"errors"
	"net/http"

	"checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	apperrors "checkoutgo/internal/shared/errors"
	"checkoutgo/internal/shared/logger"
)

type HandleWebhookUseCase struct {
	checkoutRepo checkout.CheckoutRepository
	gateways     *gateway.Registry
	confirm      *ProcessConfirmationUseCase
	logger       logger.Interface
}

func NewHandleWebhookUseCase(
	checkoutRepo checkout.CheckoutRepository,
	gateways *gateway.Registry,
	confirm *ProcessConfirmationUseCase,
	logger logger.Interface,
) *HandleWebhookUseCase {
	return &HandleWebhookUseCase{
		checkoutRepo: checkoutRepo,
		gateways:     gateways,
		confirm:      confirm,
		logger:       logger,
	}
}

// Execute authenticates and applies one provider webhook delivery. The
// signature check runs before any ledger lookup; deliveries that reference
// no known checkout are acknowledged so the provider stops retrying.
func (uc *HandleWebhookUseCase) Execute(ctx context.Context, provider vo.Provider, req *http.Request, body []byte) error {
	gw, err := uc.gateways.Get(provider)
	if err != nil {
		return apperrors.NewNotFoundError("unknown provider", provider.String())
	}

	conf, err := gw.ParseWebhook(req, body)
	if err != nil {
		uc.logger.Warnw("webhook rejected", "provider", provider.String(), "error", err)
		return apperrors.NewUnauthorizedError("invalid webhook", err.Error())
	}

	if conf.Event == gateway.EventIgnored {
		return nil
	}

	co, err := uc.findCheckout(ctx, conf)
	if err != nil {
		if errors.Is(err, checkout.ErrCheckoutNotFound) {
			uc.logger.Infow("webhook for unknown checkout",
				"provider", provider.String(),
				"reference", conf.Reference,
				"session_id", conf.SessionID,
			)
			return nil
		}
		return err
	}

	return uc.confirm.Execute(ctx, co, conf)
}

func (uc *HandleWebhookUseCase) findCheckout(ctx context.Context, conf *gateway.Confirmation) (*checkout.Checkout, error) {
	if conf.Reference != "" {
		return uc.checkoutRepo.GetByReference(ctx, conf.Reference)
	}
	if conf.SessionID != "" {
		return uc.checkoutRepo.GetByProviderSessionID(ctx, conf.SessionID)
	}
	// Renewal and cancellation notifications often carry nothing but the
	// provider's subscription id.
	if conf.SubscriptionID != "" {
		return uc.checkoutRepo.GetByProviderSubscriptionID(ctx, conf.SubscriptionID)
	}
	return nil, checkout.ErrCheckoutNotFound
}
