package valueobjects

import "fmt"

type PaymentType string

const (
	PaymentTypeOneTime   PaymentType = "onetime"
	PaymentTypeRecurring PaymentType = "recurring"
)

func NewPaymentType(s string) (PaymentType, error) {
	t := PaymentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid payment type: %s", s)
	}
	return t, nil
}

func (t PaymentType) IsValid() bool {
	return t == PaymentTypeOneTime || t == PaymentTypeRecurring
}

func (t PaymentType) IsRecurring() bool {
	return t == PaymentTypeRecurring
}

func (t PaymentType) String() string {
	return string(t)
}

// Frequency is the billing interval for recurring checkouts.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func NewFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid frequency: %s", s)
	}
	return f, nil
}

func (f Frequency) IsValid() bool {
	return f == FrequencyMonthly || f == FrequencyYearly
}

// Months returns the interval length in months.
func (f Frequency) Months() int {
	if f == FrequencyYearly {
		return 12
	}
	return 1
}

func (f Frequency) String() string {
	return string(f)
}
