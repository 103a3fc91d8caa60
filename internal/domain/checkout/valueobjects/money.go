package valueobjects

import (
	"fmt"
	"strconv"
	"strings"
)

// zeroDecimalCurrencies are ISO 4217 currencies with no minor unit. Their
// amounts must be sent to providers as-is, never multiplied by 100.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// Money stores an amount in hundredths of the major unit regardless of
// currency, so "25.00 USD" and "2500 JPY" are both amountInCents=2500 and
// 250000 respectively. Provider-facing conversion happens in MinorUnits.
type Money struct {
	amountInCents int64
	currency      string
}

func NewMoney(amountInCents int64, currency string) Money {
	if currency == "" {
		currency = "USD"
	}
	return Money{
		amountInCents: amountInCents,
		currency:      strings.ToUpper(currency),
	}
}

// ParseMoney parses a decimal price string ("25.00", "9.99", "1000") without
// going through floating point.
func ParseMoney(price, currency string) (Money, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return Money{}, fmt.Errorf("price is required")
	}
	// Checked up front: "-0.50" would otherwise parse its whole part to 0
	// and lose the sign.
	if strings.HasPrefix(price, "-") {
		return Money{}, fmt.Errorf("price %q must not be negative", price)
	}

	whole, frac := price, ""
	if idx := strings.IndexByte(price, '.'); idx >= 0 {
		whole, frac = price[:idx], price[idx+1:]
	}
	if len(frac) > 2 {
		return Money{}, fmt.Errorf("price %q has more than two decimal places", price)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return NewMoney(units*100+cents, currency), nil
}

func (m Money) AmountInCents() int64 {
	return m.amountInCents
}

func (m Money) Currency() string {
	return m.currency
}

// MinorUnits returns the amount in the provider-facing smallest currency
// unit: the stored hundredths for two-decimal currencies, the whole-unit
// amount for zero-decimal ones.
func (m Money) MinorUnits() int64 {
	if m.IsZeroDecimal() {
		return m.amountInCents / 100
	}
	return m.amountInCents
}

func (m Money) IsZeroDecimal() bool {
	return zeroDecimalCurrencies[m.currency]
}

func (m Money) Equals(other Money) bool {
	return m.amountInCents == other.amountInCents && m.currency == other.currency
}

func (m Money) IsPositive() bool {
	return m.amountInCents > 0
}

func (m Money) String() string {
	if m.IsZeroDecimal() {
		return fmt.Sprintf("%d %s", m.amountInCents/100, m.currency)
	}
	return fmt.Sprintf("%d.%02d %s", m.amountInCents/100, m.amountInCents%100, m.currency)
}
