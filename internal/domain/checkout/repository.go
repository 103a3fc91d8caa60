package checkout

import "context"

type CheckoutRepository interface {
	Create(ctx context.Context, checkout *Checkout) error
	Update(ctx context.Context, checkout *Checkout) error
	GetByID(ctx context.Context, id uint) (*Checkout, error)
	GetByReference(ctx context.Context, reference string) (*Checkout, error)
	GetByProviderSessionID(ctx context.Context, sessionID string) (*Checkout, error)
	// GetByProviderSubscriptionID resolves renewal and cancellation
	// notifications that carry only the provider's subscription id.
	GetByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*Checkout, error)
	// ClaimPaid atomically flips an unpaid checkout to paid. Exactly one
	// caller per reference observes claimed=true; every other confirmation
	// of the same reference observes false.
	ClaimPaid(ctx context.Context, reference string, providerSubscriptionID *string) (bool, error)
	GetExpiredCheckouts(ctx context.Context) ([]*Checkout, error)
	// GetPaidUnfulfilled returns paid checkouts whose fulfillment operation
	// has not completed, for scheduler-driven retry.
	GetPaidUnfulfilled(ctx context.Context) ([]*Checkout, error)
}
