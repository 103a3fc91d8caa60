package valueobjects

type CheckoutStatus string

const (
	CheckoutStatusCreated              CheckoutStatus = "created"
	CheckoutStatusAwaitingRedirect     CheckoutStatus = "awaiting_redirect"
	CheckoutStatusAwaitingConfirmation CheckoutStatus = "awaiting_confirmation"
	CheckoutStatusPaid                 CheckoutStatus = "paid"
	CheckoutStatusFailed               CheckoutStatus = "failed"
	CheckoutStatusExpired              CheckoutStatus = "expired"
	CheckoutStatusCancelled            CheckoutStatus = "cancelled"
)

func (s CheckoutStatus) IsValid() bool {
	switch s {
	case CheckoutStatusCreated, CheckoutStatusAwaitingRedirect,
		CheckoutStatusAwaitingConfirmation, CheckoutStatusPaid,
		CheckoutStatusFailed, CheckoutStatusExpired, CheckoutStatusCancelled:
		return true
	default:
		return false
	}
}

func (s CheckoutStatus) IsPaid() bool {
	// A cancelled recurring checkout was still paid.
	return s == CheckoutStatusPaid || s == CheckoutStatusCancelled
}

// IsFinal reports whether no further payment confirmation may arrive.
// Paid is final for confirmation purposes; cancellation is a separate,
// provider-side transition.
func (s CheckoutStatus) IsFinal() bool {
	switch s {
	case CheckoutStatusPaid, CheckoutStatusFailed, CheckoutStatusExpired, CheckoutStatusCancelled:
		return true
	default:
		return false
	}
}

func (s CheckoutStatus) String() string {
	return string(s)
}
