package mappers

import (
	"fmt"

	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/infrastructure/persistence/models"
)

func CheckoutToModel(co *checkout.Checkout) *models.CheckoutModel {
	model := &models.CheckoutModel{
		ID:                     co.ID(),
		Reference:              co.Reference(),
		Amount:                 co.Amount().AmountInCents(),
		Currency:               co.Amount().Currency(),
		PaymentType:            co.PaymentType().String(),
		Frequency:              co.Frequency().String(),
		Provider:               co.Provider().String(),
		Email:                  co.Email(),
		CallbackURL:            co.CallbackURL(),
		ErrorURL:               co.ErrorURL(),
		FulfillmentOp:          co.FulfillmentOp(),
		ProviderSessionID:      co.ProviderSessionID(),
		ProviderSubscriptionID: co.ProviderSubscriptionID(),
		Status:                 co.Status().String(),
		Paid:                   co.Status().IsPaid(),
		PaidAt:                 co.PaidAt(),
		FulfilledAt:            co.FulfilledAt(),
		ExpiredAt:              co.ExpiredAt(),
		Version:                co.Version(),
		CreatedAt:              co.CreatedAt(),
		UpdatedAt:              co.UpdatedAt(),
	}

	if len(co.ProviderKeys()) > 0 {
		keys := make(models.JSONB, len(co.ProviderKeys()))
		for k, v := range co.ProviderKeys() {
			keys[k] = v
		}
		model.ProviderKeys = keys
	}
	if len(co.FulfillmentArgs()) > 0 {
		model.FulfillmentArgs = co.FulfillmentArgs()
	}
	if len(co.Meta()) > 0 {
		model.Meta = co.Meta()
	}

	return model
}

func CheckoutToDomain(model *models.CheckoutModel) (*checkout.Checkout, error) {
	paymentType := vo.PaymentType(model.PaymentType)
	if !paymentType.IsValid() {
		return nil, fmt.Errorf("invalid payment type: %s", model.PaymentType)
	}

	provider := vo.Provider(model.Provider)
	if !provider.IsValid() {
		return nil, fmt.Errorf("invalid provider: %s", model.Provider)
	}

	status := vo.CheckoutStatus(model.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid checkout status: %s", model.Status)
	}

	var providerKeys map[string]string
	if len(model.ProviderKeys) > 0 {
		providerKeys = make(map[string]string, len(model.ProviderKeys))
		for k, v := range model.ProviderKeys {
			if s, ok := v.(string); ok {
				providerKeys[k] = s
			}
		}
	}

	return checkout.ReconstructCheckout(checkout.CheckoutReconstructParams{
		ID:                     model.ID,
		Reference:              model.Reference,
		Amount:                 vo.NewMoney(model.Amount, model.Currency),
		PaymentType:            paymentType,
		Frequency:              vo.Frequency(model.Frequency),
		Provider:               provider,
		Email:                  model.Email,
		CallbackURL:            model.CallbackURL,
		ErrorURL:               model.ErrorURL,
		ProviderKeys:           providerKeys,
		FulfillmentOp:          model.FulfillmentOp,
		FulfillmentArgs:        model.FulfillmentArgs,
		ProviderSessionID:      model.ProviderSessionID,
		ProviderSubscriptionID: model.ProviderSubscriptionID,
		Status:                 status,
		PaidAt:                 model.PaidAt,
		FulfilledAt:            model.FulfilledAt,
		ExpiredAt:              model.ExpiredAt,
		Meta:                   model.Meta,
		Version:                model.Version,
		CreatedAt:              model.CreatedAt,
		UpdatedAt:              model.UpdatedAt,
	}), nil
}
