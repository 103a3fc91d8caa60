package usecases

import (
	"context"
	"fmt"
	"time"

	"checkoutgo/internal/application/checkout/fulfillment"
	"checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	apperrors "checkoutgo/internal/shared/errors"
	"checkoutgo/internal/shared/logger"
)

type CreateCheckoutCommand struct {
	Price           string
	Currency        string
	PaymentType     string
	Frequency       string
	Provider        string
	Email           string
	CallbackURL     string
	ErrorURL        string
	ProviderKeys    map[string]string
	FulfillmentOp   string
	FulfillmentArgs map[string]interface{}
}

// CreateCheckoutResult is the soft-failure response shape: provider outages
// surface as Status 0 with a message instead of an error, so merchant code
// can branch without panicking.
type CreateCheckoutResult struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Status      int    `json:"status"`
	Response    string `json:"response,omitempty"`
}

type CreateCheckoutUseCase struct {
	checkoutRepo   checkout.CheckoutRepository
	gateways       *gateway.Registry
	fulfillmentOps *fulfillment.Registry
	baseURL        string
	expiresIn      time.Duration
	logger         logger.Interface
}

func NewCreateCheckoutUseCase(
	checkoutRepo checkout.CheckoutRepository,
	gateways *gateway.Registry,
	fulfillmentOps *fulfillment.Registry,
	baseURL string,
	expiresIn time.Duration,
	logger logger.Interface,
) *CreateCheckoutUseCase {
	return &CreateCheckoutUseCase{
		checkoutRepo:   checkoutRepo,
		gateways:       gateways,
		fulfillmentOps: fulfillmentOps,
		baseURL:        baseURL,
		expiresIn:      expiresIn,
		logger:         logger,
	}
}

func (uc *CreateCheckoutUseCase) Execute(ctx context.Context, cmd CreateCheckoutCommand) (*CreateCheckoutResult, error) {
	amount, err := vo.ParseMoney(cmd.Price, cmd.Currency)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid price", err.Error())
	}

	paymentType, err := vo.NewPaymentType(cmd.PaymentType)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid payment type", err.Error())
	}

	var frequency vo.Frequency
	if paymentType.IsRecurring() {
		frequency, err = vo.NewFrequency(cmd.Frequency)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid frequency", err.Error())
		}
	}

	provider, err := vo.NewProvider(cmd.Provider)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid provider", err.Error())
	}

	if !uc.fulfillmentOps.Has(cmd.FulfillmentOp) {
		return nil, apperrors.NewValidationError("unknown fulfillment operation", cmd.FulfillmentOp)
	}

	gw, err := uc.gateways.Get(provider)
	if err != nil {
		return nil, apperrors.NewValidationError("provider not configured", err.Error())
	}

	co, err := checkout.NewCheckout(checkout.NewCheckoutParams{
		Amount:          amount,
		PaymentType:     paymentType,
		Frequency:       frequency,
		Provider:        provider,
		Email:           cmd.Email,
		CallbackURL:     cmd.CallbackURL,
		ErrorURL:        cmd.ErrorURL,
		ProviderKeys:    cmd.ProviderKeys,
		FulfillmentOp:   cmd.FulfillmentOp,
		FulfillmentArgs: cmd.FulfillmentArgs,
		ExpiresIn:       uc.expiresIn,
	})
	if err != nil {
		return nil, apperrors.NewValidationError("invalid checkout", err.Error())
	}

	// The ledger row exists before we talk to the provider, so a webhook
	// racing the create response always finds its reference.
	if err := uc.checkoutRepo.Create(ctx, co); err != nil {
		uc.logger.Errorw("failed to persist checkout", "reference", co.Reference(), "error", err)
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}

	resp, err := gw.CreateSession(ctx, co, gateway.CreateSessionRequest{
		SuccessURL: fmt.Sprintf("%s/api/v1/checkouts/%s/return", uc.baseURL, co.Reference()),
		CancelURL:  fmt.Sprintf("%s/api/v1/checkouts/%s/cancel", uc.baseURL, co.Reference()),
		WebhookURL: fmt.Sprintf("%s/api/v1/webhooks/%s", uc.baseURL, provider),
	})
	if err != nil {
		uc.logger.Warnw("provider session creation failed",
			"reference", co.Reference(),
			"provider", provider.String(),
			"error", err,
		)
		if markErr := co.MarkFailed(err.Error()); markErr == nil {
			if updateErr := uc.checkoutRepo.Update(ctx, co); updateErr != nil {
				uc.logger.Errorw("failed to record session failure", "reference", co.Reference(), "error", updateErr)
			}
		}
		return &CreateCheckoutResult{
			Reference: co.Reference(),
			Status:    0,
			Response:  err.Error(),
		}, nil
	}

	co.SetProviderSession(resp.SessionID)
	if resp.PlanID != "" {
		co.SetMeta("provider_plan_id", resp.PlanID)
	}
	if err := uc.checkoutRepo.Update(ctx, co); err != nil {
		uc.logger.Errorw("failed to record provider session", "reference", co.Reference(), "error", err)
		return nil, fmt.Errorf("failed to update checkout: %w", err)
	}

	uc.logger.Infow("checkout created",
		"reference", co.Reference(),
		"provider", provider.String(),
		"amount", amount.String(),
		"payment_type", paymentType.String(),
	)

	return &CreateCheckoutResult{
		Reference:   co.Reference(),
		RedirectURL: resp.RedirectURL,
		Status:      1,
	}, nil
}
