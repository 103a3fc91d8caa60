package gateway

import (
	"context"
	"net/http"
	"time"

	"checkoutgo/internal/domain/checkout"
)

// PaymentGateway adapts one payment provider to the common checkout
// lifecycle. Implementations live in internal/infrastructure/gateway.
type PaymentGateway interface {
	// CreateSession creates a hosted payment page for the checkout and
	// returns the redirect URL plus the provider-side session identifier.
	// Provider API failures come back as an error; the usecase converts
	// them into the soft-failure response shape.
	CreateSession(ctx context.Context, co *checkout.Checkout, req CreateSessionRequest) (*CreateSessionResponse, error)

	// VerifyReturn confirms payment state when the customer lands back on
	// our callback URL. Providers whose redirects are untrusted must call
	// the provider API out of band here.
	VerifyReturn(ctx context.Context, co *checkout.Checkout, params map[string]string) (*Confirmation, error)

	// ParseWebhook authenticates the raw webhook request and extracts the
	// confirmation it carries. Signature checks run against platform-level
	// secrets before any ledger lookup.
	ParseWebhook(req *http.Request, body []byte) (*Confirmation, error)

	// CancelSubscription stops a recurring subscription at the provider.
	CancelSubscription(ctx context.Context, co *checkout.Checkout) error
}

// CreateSessionRequest carries the non-domain inputs of session creation:
// where the provider should send the customer and its webhooks.
type CreateSessionRequest struct {
	SuccessURL string
	CancelURL  string
	WebhookURL string
}

type CreateSessionResponse struct {
	SessionID   string
	RedirectURL string
	// PlanID is set for recurring sessions when the adapter created or
	// reused a provider-side plan.
	PlanID string
}

// Confirmation is the normalized outcome of a webhook event or a return
// verification. Amount is in the provider-facing minor unit so it can be
// checked against Money.MinorUnits.
type Confirmation struct {
	// Reference is the ledger reference the provider echoed back. Empty
	// when the provider only supplied a session ID.
	Reference string
	SessionID string
	// SubscriptionID is the provider-side subscription for recurring
	// payments, empty otherwise.
	SubscriptionID string
	Event          EventType
	Amount         int64
	Currency       string
	PaidAt         time.Time
	Raw            map[string]interface{}
}

// EventType classifies what a provider notification means for the ledger.
type EventType string

const (
	// EventPaymentSucceeded confirms money moved for the checkout.
	EventPaymentSucceeded EventType = "payment_succeeded"
	// EventPaymentFailed reports a definitive failure.
	EventPaymentFailed EventType = "payment_failed"
	// EventSubscriptionCancelled reports a provider-side cancellation.
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	// EventIgnored covers event types the lifecycle does not act on.
	// Handlers acknowledge them so providers stop retrying.
	EventIgnored EventType = "ignored"
)
