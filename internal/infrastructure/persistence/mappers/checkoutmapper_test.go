package mappers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/infrastructure/persistence/models"
)

func newTestCheckout(t *testing.T) *checkout.Checkout {
	t.Helper()

	co, err := checkout.NewCheckout(checkout.NewCheckoutParams{
		Amount:        vo.NewMoney(2500, "USD"),
		PaymentType:   vo.PaymentTypeRecurring,
		Frequency:     vo.FrequencyMonthly,
		Provider:      vo.ProviderStripe,
		Email:         "customer@example.com",
		CallbackURL:   "https://merchant.example.com/thanks",
		ErrorURL:      "https://merchant.example.com/oops",
		ProviderKeys:  map[string]string{"secret_key": "sk_tenant"},
		FulfillmentOp: "merchant_webhook",
		FulfillmentArgs: map[string]interface{}{
			"url": "https://merchant.example.com/fulfill",
		},
	})
	require.NoError(t, err)
	return co
}

func TestCheckoutRoundTrip(t *testing.T) {
	co := newTestCheckout(t)
	co.SetID(42)
	co.SetProviderSession("cs_test_123")

	model := CheckoutToModel(co)

	assert.Equal(t, co.Reference(), model.Reference)
	assert.Equal(t, int64(2500), model.Amount)
	assert.Equal(t, "USD", model.Currency)
	assert.Equal(t, "recurring", model.PaymentType)
	assert.Equal(t, "monthly", model.Frequency)
	assert.False(t, model.Paid)

	restored, err := CheckoutToDomain(model)
	require.NoError(t, err)

	assert.Equal(t, co.Reference(), restored.Reference())
	assert.Equal(t, co.Amount(), restored.Amount())
	assert.Equal(t, co.Status(), restored.Status())
	assert.Equal(t, "sk_tenant", restored.ProviderKey("secret_key", "fallback"))
	assert.Equal(t, co.FulfillmentOp(), restored.FulfillmentOp())
	require.NotNil(t, restored.ProviderSessionID())
	assert.Equal(t, "cs_test_123", *restored.ProviderSessionID())
}

func TestCheckoutToModel_PaidClaimColumn(t *testing.T) {
	co := newTestCheckout(t)
	co.SetProviderSession("cs_test_123")
	require.NoError(t, co.MarkAwaitingConfirmation())
	require.NoError(t, co.MarkPaid("sub_123"))

	model := CheckoutToModel(co)

	assert.True(t, model.Paid)
	assert.Equal(t, "paid", model.Status)
	assert.NotNil(t, model.PaidAt)

	require.NoError(t, co.MarkCancelled())
	model = CheckoutToModel(co)

	// Cancellation ends the subscription, not the payment.
	assert.True(t, model.Paid)
	assert.Equal(t, "cancelled", model.Status)
}

func TestCheckoutToDomain_InvalidColumns(t *testing.T) {
	base := func() *models.CheckoutModel {
		return &models.CheckoutModel{
			Reference:     "co_test",
			Amount:        1000,
			Currency:      "USD",
			PaymentType:   "onetime",
			Provider:      "stripe",
			Status:        "created",
			Email:         "customer@example.com",
			FulfillmentOp: "log_only",
			ExpiredAt:     time.Now().UTC().Add(30 * time.Minute),
		}
	}

	m := base()
	m.Provider = "bogus"
	_, err := CheckoutToDomain(m)
	assert.Error(t, err)

	m = base()
	m.PaymentType = "installments"
	_, err = CheckoutToDomain(m)
	assert.Error(t, err)

	m = base()
	m.Status = "limbo"
	_, err = CheckoutToDomain(m)
	assert.Error(t, err)

	_, err = CheckoutToDomain(base())
	assert.NoError(t, err)
}
