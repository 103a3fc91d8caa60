package checkout

import (
	"fmt"
	"time"

	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/shared/biztime"
	"checkoutgo/internal/shared/id"
)

// Checkout is the ledger entry for a single payment attempt. It carries
// everything needed to resume the flow when the provider calls back:
// the amount, the provider and its credentials, and the fulfillment
// operation to run once money is confirmed.
type Checkout struct {
	id        uint
	reference string

	amount      vo.Money
	paymentType vo.PaymentType
	frequency   vo.Frequency
	provider    vo.Provider

	email       string
	callbackURL string
	errorURL    string

	// providerKeys optionally overrides the platform credentials for this
	// checkout only. Webhook secrets are never overridden here.
	providerKeys map[string]string

	fulfillmentOp   string
	fulfillmentArgs map[string]interface{}

	providerSessionID      *string
	providerSubscriptionID *string

	status      vo.CheckoutStatus
	paidAt      *time.Time
	fulfilledAt *time.Time
	expiredAt   time.Time

	meta map[string]interface{}

	version   int
	createdAt time.Time
	updatedAt time.Time
}

type NewCheckoutParams struct {
	Amount          vo.Money
	PaymentType     vo.PaymentType
	Frequency       vo.Frequency
	Provider        vo.Provider
	Email           string
	CallbackURL     string
	ErrorURL        string
	ProviderKeys    map[string]string
	FulfillmentOp   string
	FulfillmentArgs map[string]interface{}
	ExpiresIn       time.Duration
}

func NewCheckout(params NewCheckoutParams) (*Checkout, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if !params.PaymentType.IsValid() {
		return nil, fmt.Errorf("invalid payment type: %s", params.PaymentType)
	}
	if params.PaymentType.IsRecurring() && !params.Frequency.IsValid() {
		return nil, fmt.Errorf("frequency is required for recurring checkouts")
	}
	if !params.Provider.IsValid() {
		return nil, fmt.Errorf("unknown payment provider: %s", params.Provider)
	}
	if params.Email == "" {
		return nil, fmt.Errorf("customer email is required")
	}
	if params.FulfillmentOp == "" {
		return nil, fmt.Errorf("fulfillment operation is required")
	}
	if params.ExpiresIn <= 0 {
		params.ExpiresIn = 30 * time.Minute
	}

	frequency := params.Frequency
	if !params.PaymentType.IsRecurring() {
		frequency = ""
	}

	now := biztime.NowUTC()
	return &Checkout{
		reference:       id.MustGenerateWithPrefix(id.PrefixCheckout, 16),
		amount:          params.Amount,
		paymentType:     params.PaymentType,
		frequency:       frequency,
		provider:        params.Provider,
		email:           params.Email,
		callbackURL:     params.CallbackURL,
		errorURL:        params.ErrorURL,
		providerKeys:    params.ProviderKeys,
		fulfillmentOp:   params.FulfillmentOp,
		fulfillmentArgs: params.FulfillmentArgs,
		status:          vo.CheckoutStatusCreated,
		expiredAt:       now.Add(params.ExpiresIn),
		meta:            make(map[string]interface{}),
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// SetProviderSession records the provider-side session after a hosted page
// was created and moves the checkout into the redirect phase.
func (c *Checkout) SetProviderSession(sessionID string) {
	c.providerSessionID = &sessionID
	c.status = vo.CheckoutStatusAwaitingRedirect
	c.touch()
}

// MarkAwaitingConfirmation records that the customer returned from the
// provider but payment has not been confirmed yet.
func (c *Checkout) MarkAwaitingConfirmation() error {
	if c.status.IsFinal() {
		return fmt.Errorf("cannot await confirmation with final status %s", c.status)
	}
	c.status = vo.CheckoutStatusAwaitingConfirmation
	c.touch()
	return nil
}

// MarkPaid transitions the checkout to paid. Calling it on an already paid
// checkout is a no-op. A confirmation arriving after expiry still wins: the
// money moved, so the ledger must say so.
func (c *Checkout) MarkPaid(providerSubscriptionID string) error {
	if c.status.IsPaid() {
		return nil
	}
	if c.status == vo.CheckoutStatusExpired {
		c.meta["late_confirmation"] = true
	}

	now := biztime.NowUTC()
	c.status = vo.CheckoutStatusPaid
	c.paidAt = &now
	if providerSubscriptionID != "" {
		c.providerSubscriptionID = &providerSubscriptionID
	}
	c.touch()
	return nil
}

// MarkFulfilled records that the fulfillment operation completed. The paid
// flag and fulfilledAt are separate so a crashed fulfillment can be retried
// without re-claiming the payment.
func (c *Checkout) MarkFulfilled() error {
	if !c.status.IsPaid() {
		return fmt.Errorf("cannot fulfill checkout with status %s", c.status)
	}
	if c.fulfilledAt != nil {
		return nil
	}
	now := biztime.NowUTC()
	c.fulfilledAt = &now
	c.touch()
	return nil
}

func (c *Checkout) MarkFailed(reason string) error {
	if c.status.IsPaid() {
		return fmt.Errorf("cannot mark paid checkout as failed")
	}
	if c.status.IsFinal() {
		return nil
	}
	c.status = vo.CheckoutStatusFailed
	c.meta["failure_reason"] = reason
	c.touch()
	return nil
}

func (c *Checkout) MarkExpired() error {
	if c.status.IsFinal() {
		return nil
	}
	c.status = vo.CheckoutStatusExpired
	c.touch()
	return nil
}

// MarkCancelled ends a recurring subscription. One-time checkouts and
// checkouts that never reached paid cannot be cancelled.
func (c *Checkout) MarkCancelled() error {
	if !c.paymentType.IsRecurring() {
		return fmt.Errorf("cannot cancel one-time checkout")
	}
	if c.status != vo.CheckoutStatusPaid {
		return fmt.Errorf("cannot cancel checkout with status %s", c.status)
	}
	c.status = vo.CheckoutStatusCancelled
	c.touch()
	return nil
}

// ValidateConfirmationAmount rejects confirmations whose amount or currency
// do not match what the checkout was created for.
func (c *Checkout) ValidateConfirmationAmount(minorUnits int64, currency string) error {
	if c.amount.MinorUnits() != minorUnits {
		return fmt.Errorf("amount mismatch: expected %d, got %d", c.amount.MinorUnits(), minorUnits)
	}
	if currency != "" && c.amount.Currency() != currency {
		return fmt.Errorf("currency mismatch: expected %s, got %s", c.amount.Currency(), currency)
	}
	return nil
}

func (c *Checkout) IsExpired() bool {
	return biztime.NowUTC().After(c.expiredAt)
}

// RequiresFulfillment reports whether the checkout is paid but its
// fulfillment operation has not completed yet.
func (c *Checkout) RequiresFulfillment() bool {
	return c.status.IsPaid() && c.fulfilledAt == nil
}

func (c *Checkout) touch() {
	c.updatedAt = biztime.NowUTC()
	c.version++
}

func (c *Checkout) ID() uint {
	return c.id
}

// SetID sets the checkout ID after persistence (used by repository after Create).
func (c *Checkout) SetID(id uint) {
	c.id = id
}

func (c *Checkout) Reference() string {
	return c.reference
}

func (c *Checkout) Amount() vo.Money {
	return c.amount
}

func (c *Checkout) PaymentType() vo.PaymentType {
	return c.paymentType
}

func (c *Checkout) Frequency() vo.Frequency {
	return c.frequency
}

func (c *Checkout) Provider() vo.Provider {
	return c.provider
}

func (c *Checkout) Email() string {
	return c.email
}

func (c *Checkout) CallbackURL() string {
	return c.callbackURL
}

func (c *Checkout) ErrorURL() string {
	return c.errorURL
}

func (c *Checkout) ProviderKeys() map[string]string {
	return c.providerKeys
}

// ProviderKey returns the per-checkout credential override for name, or
// fallback when no override exists.
func (c *Checkout) ProviderKey(name, fallback string) string {
	if v, ok := c.providerKeys[name]; ok && v != "" {
		return v
	}
	return fallback
}

func (c *Checkout) FulfillmentOp() string {
	return c.fulfillmentOp
}

func (c *Checkout) FulfillmentArgs() map[string]interface{} {
	return c.fulfillmentArgs
}

func (c *Checkout) ProviderSessionID() *string {
	return c.providerSessionID
}

func (c *Checkout) ProviderSubscriptionID() *string {
	return c.providerSubscriptionID
}

func (c *Checkout) Status() vo.CheckoutStatus {
	return c.status
}

func (c *Checkout) PaidAt() *time.Time {
	return c.paidAt
}

func (c *Checkout) FulfilledAt() *time.Time {
	return c.fulfilledAt
}

func (c *Checkout) ExpiredAt() time.Time {
	return c.expiredAt
}

func (c *Checkout) Meta() map[string]interface{} {
	return c.meta
}

func (c *Checkout) SetMeta(key string, value interface{}) {
	if c.meta == nil {
		c.meta = make(map[string]interface{})
	}
	c.meta[key] = value
	c.touch()
}

func (c *Checkout) Version() int {
	return c.version
}

func (c *Checkout) CreatedAt() time.Time {
	return c.createdAt
}

func (c *Checkout) UpdatedAt() time.Time {
	return c.updatedAt
}

type CheckoutReconstructParams struct {
	ID                     uint
	Reference              string
	Amount                 vo.Money
	PaymentType            vo.PaymentType
	Frequency              vo.Frequency
	Provider               vo.Provider
	Email                  string
	CallbackURL            string
	ErrorURL               string
	ProviderKeys           map[string]string
	FulfillmentOp          string
	FulfillmentArgs        map[string]interface{}
	ProviderSessionID      *string
	ProviderSubscriptionID *string
	Status                 vo.CheckoutStatus
	PaidAt                 *time.Time
	FulfilledAt            *time.Time
	ExpiredAt              time.Time
	Meta                   map[string]interface{}
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ReconstructCheckout rebuilds a Checkout from persistence without running
// constructor validation.
func ReconstructCheckout(params CheckoutReconstructParams) *Checkout {
	meta := params.Meta
	if meta == nil {
		meta = make(map[string]interface{})
	}
	return &Checkout{
		id:                     params.ID,
		reference:              params.Reference,
		amount:                 params.Amount,
		paymentType:            params.PaymentType,
		frequency:              params.Frequency,
		provider:               params.Provider,
		email:                  params.Email,
		callbackURL:            params.CallbackURL,
		errorURL:               params.ErrorURL,
		providerKeys:           params.ProviderKeys,
		fulfillmentOp:          params.FulfillmentOp,
		fulfillmentArgs:        params.FulfillmentArgs,
		providerSessionID:      params.ProviderSessionID,
		providerSubscriptionID: params.ProviderSubscriptionID,
		status:                 params.Status,
		paidAt:                 params.PaidAt,
		fulfilledAt:            params.FulfilledAt,
		expiredAt:              params.ExpiredAt,
		meta:                   meta,
		version:                params.Version,
		createdAt:              params.CreatedAt,
		updatedAt:              params.UpdatedAt,
	}
}
