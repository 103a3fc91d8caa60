package checkout

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "checkoutgo/internal/domain/checkout/valueobjects"
)

func validParams() NewCheckoutParams {
	return NewCheckoutParams{
		Amount:        vo.NewMoney(2500, "USD"),
		PaymentType:   vo.PaymentTypeOneTime,
		Provider:      vo.ProviderStripe,
		Email:         "buyer@example.com",
		CallbackURL:   "https://example.com/thanks",
		ErrorURL:      "https://example.com/sorry",
		FulfillmentOp: "orders.complete",
		FulfillmentArgs: map[string]interface{}{
			"order_id": float64(42),
		},
	}
}

func validCheckout(t *testing.T) *Checkout {
	t.Helper()
	c, err := NewCheckout(validParams())
	require.NoError(t, err)
	return c
}

func paidRecurringCheckout(t *testing.T) *Checkout {
	t.Helper()
	params := validParams()
	params.PaymentType = vo.PaymentTypeRecurring
	params.Frequency = vo.FrequencyMonthly
	c, err := NewCheckout(params)
	require.NoError(t, err)
	require.NoError(t, c.MarkPaid("sub_123"))
	return c
}

func TestNewCheckout_ValidInput(t *testing.T) {
	c := validCheckout(t)

	assert.Equal(t, vo.CheckoutStatusCreated, c.Status())
	assert.True(t, strings.HasPrefix(c.Reference(), "co_"))
	assert.Equal(t, "buyer@example.com", c.Email())
	assert.Equal(t, "orders.complete", c.FulfillmentOp())
	assert.Nil(t, c.PaidAt())
	assert.Nil(t, c.FulfilledAt())
	assert.False(t, c.IsExpired())
	assert.Equal(t, 0, c.Version())
}

func TestNewCheckout_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewCheckoutParams)
	}{
		{name: "zero amount", mutate: func(p *NewCheckoutParams) { p.Amount = vo.NewMoney(0, "USD") }},
		{name: "negative amount", mutate: func(p *NewCheckoutParams) { p.Amount = vo.NewMoney(-100, "USD") }},
		{name: "invalid payment type", mutate: func(p *NewCheckoutParams) { p.PaymentType = "weekly" }},
		{name: "recurring without frequency", mutate: func(p *NewCheckoutParams) {
			p.PaymentType = vo.PaymentTypeRecurring
			p.Frequency = ""
		}},
		{name: "unknown provider", mutate: func(p *NewCheckoutParams) { p.Provider = "square" }},
		{name: "missing email", mutate: func(p *NewCheckoutParams) { p.Email = "" }},
		{name: "missing fulfillment op", mutate: func(p *NewCheckoutParams) { p.FulfillmentOp = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			_, err := NewCheckout(params)
			assert.Error(t, err)
		})
	}
}

func TestNewCheckout_FrequencyClearedForOneTime(t *testing.T) {
	params := validParams()
	params.Frequency = vo.FrequencyMonthly
	c, err := NewCheckout(params)
	require.NoError(t, err)
	assert.Empty(t, c.Frequency().String())
}

func TestCheckout_SetProviderSession(t *testing.T) {
	c := validCheckout(t)
	c.SetProviderSession("cs_test_abc")

	require.NotNil(t, c.ProviderSessionID())
	assert.Equal(t, "cs_test_abc", *c.ProviderSessionID())
	assert.Equal(t, vo.CheckoutStatusAwaitingRedirect, c.Status())
	assert.Equal(t, 1, c.Version())
}

func TestCheckout_MarkPaid(t *testing.T) {
	c := validCheckout(t)

	require.NoError(t, c.MarkPaid(""))
	assert.Equal(t, vo.CheckoutStatusPaid, c.Status())
	require.NotNil(t, c.PaidAt())
	assert.Nil(t, c.ProviderSubscriptionID())
	assert.True(t, c.RequiresFulfillment())
}

func TestCheckout_MarkPaid_Idempotent(t *testing.T) {
	c := validCheckout(t)
	require.NoError(t, c.MarkPaid(""))
	firstPaidAt := *c.PaidAt()
	version := c.Version()

	require.NoError(t, c.MarkPaid(""))
	assert.Equal(t, firstPaidAt, *c.PaidAt())
	assert.Equal(t, version, c.Version())
}

func TestCheckout_MarkPaid_RecordsSubscription(t *testing.T) {
	c := paidRecurringCheckout(t)
	require.NotNil(t, c.ProviderSubscriptionID())
	assert.Equal(t, "sub_123", *c.ProviderSubscriptionID())
}

func TestCheckout_MarkPaid_AfterExpiryStillWins(t *testing.T) {
	c := validCheckout(t)
	require.NoError(t, c.MarkExpired())

	require.NoError(t, c.MarkPaid(""))
	assert.Equal(t, vo.CheckoutStatusPaid, c.Status())
	assert.Equal(t, true, c.Meta()["late_confirmation"])
}

func TestCheckout_MarkFulfilled(t *testing.T) {
	c := validCheckout(t)

	err := c.MarkFulfilled()
	assert.Error(t, err, "unpaid checkout must not be fulfillable")

	require.NoError(t, c.MarkPaid(""))
	require.NoError(t, c.MarkFulfilled())
	require.NotNil(t, c.FulfilledAt())
	assert.False(t, c.RequiresFulfillment())

	first := *c.FulfilledAt()
	require.NoError(t, c.MarkFulfilled())
	assert.Equal(t, first, *c.FulfilledAt())
}

func TestCheckout_MarkFailed(t *testing.T) {
	c := validCheckout(t)
	require.NoError(t, c.MarkFailed("card declined"))
	assert.Equal(t, vo.CheckoutStatusFailed, c.Status())
	assert.Equal(t, "card declined", c.Meta()["failure_reason"])
}

func TestCheckout_MarkFailed_NeverOverwritesPaid(t *testing.T) {
	c := validCheckout(t)
	require.NoError(t, c.MarkPaid(""))

	err := c.MarkFailed("duplicate webhook said failed")
	assert.Error(t, err)
	assert.Equal(t, vo.CheckoutStatusPaid, c.Status())
}

func TestCheckout_MarkExpired(t *testing.T) {
	c := validCheckout(t)
	require.NoError(t, c.MarkExpired())
	assert.Equal(t, vo.CheckoutStatusExpired, c.Status())

	// already final: no-op
	require.NoError(t, c.MarkExpired())
}

func TestCheckout_MarkCancelled(t *testing.T) {
	t.Run("paid recurring can cancel", func(t *testing.T) {
		c := paidRecurringCheckout(t)
		require.NoError(t, c.MarkCancelled())
		assert.Equal(t, vo.CheckoutStatusCancelled, c.Status())
	})

	t.Run("one-time cannot cancel", func(t *testing.T) {
		c := validCheckout(t)
		require.NoError(t, c.MarkPaid(""))
		assert.Error(t, c.MarkCancelled())
	})

	t.Run("unpaid recurring cannot cancel", func(t *testing.T) {
		params := validParams()
		params.PaymentType = vo.PaymentTypeRecurring
		params.Frequency = vo.FrequencyYearly
		c, err := NewCheckout(params)
		require.NoError(t, err)
		assert.Error(t, c.MarkCancelled())
	})
}

func TestCheckout_ValidateConfirmationAmount(t *testing.T) {
	c := validCheckout(t)

	assert.NoError(t, c.ValidateConfirmationAmount(2500, "USD"))
	assert.NoError(t, c.ValidateConfirmationAmount(2500, ""), "providers that omit currency pass amount check only")
	assert.Error(t, c.ValidateConfirmationAmount(2400, "USD"))
	assert.Error(t, c.ValidateConfirmationAmount(2500, "EUR"))
}

func TestCheckout_ProviderKey(t *testing.T) {
	params := validParams()
	params.ProviderKeys = map[string]string{"secret_key": "sk_override"}
	c, err := NewCheckout(params)
	require.NoError(t, err)

	assert.Equal(t, "sk_override", c.ProviderKey("secret_key", "sk_platform"))
	assert.Equal(t, "pk_platform", c.ProviderKey("public_key", "pk_platform"))
}

func TestCheckout_IsExpired(t *testing.T) {
	c := ReconstructCheckout(CheckoutReconstructParams{
		Reference:   "co_expired",
		Amount:      vo.NewMoney(2500, "USD"),
		PaymentType: vo.PaymentTypeOneTime,
		Provider:    vo.ProviderStripe,
		Status:      vo.CheckoutStatusAwaitingRedirect,
		ExpiredAt:   time.Now().UTC().Add(-time.Minute),
	})
	assert.True(t, c.IsExpired())
}

func TestReconstructCheckout(t *testing.T) {
	sessionID := "cs_123"
	paidAt := time.Now().UTC().Add(-time.Hour)
	c := ReconstructCheckout(CheckoutReconstructParams{
		ID:                40,
		Reference:         "co_abc123",
		Amount:            vo.NewMoney(999, "EUR"),
		PaymentType:       vo.PaymentTypeRecurring,
		Frequency:         vo.FrequencyMonthly,
		Provider:          vo.ProviderPaystack,
		Email:             "buyer@example.com",
		FulfillmentOp:     "orders.complete",
		ProviderSessionID: &sessionID,
		Status:            vo.CheckoutStatusPaid,
		PaidAt:            &paidAt,
		ExpiredAt:         time.Now().UTC().Add(time.Hour),
		Version:           3,
	})

	assert.Equal(t, uint(40), c.ID())
	assert.Equal(t, "co_abc123", c.Reference())
	assert.Equal(t, vo.ProviderPaystack, c.Provider())
	assert.Equal(t, 3, c.Version())
	assert.NotNil(t, c.Meta(), "nil meta must be replaced so SetMeta is safe")
	assert.True(t, c.RequiresFulfillment())
}
