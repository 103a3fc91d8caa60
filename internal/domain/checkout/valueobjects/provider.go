package valueobjects

import "fmt"

// Provider identifies a payment gateway. Adapters register themselves in the
// gateway registry under one of these identifiers.
type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderPaystack    Provider = "paystack"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderRazorpay    Provider = "razorpay"
)

func NewProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown payment provider: %s", s)
	}
	return p, nil
}

func (p Provider) IsValid() bool {
	switch p {
	case ProviderStripe, ProviderPaystack, ProviderFlutterwave, ProviderRazorpay:
		return true
	default:
		return false
	}
}

func (p Provider) String() string {
	return string(p)
}
