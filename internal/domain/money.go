package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitScale = 2

var centsPerUnit = decimal.NewFromInt(100)

// ToDecimal converts cents to a major-unit decimal.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsPerUnit)
}

// FromDecimal converts a major-unit decimal to cents, rounding half away from
// zero. Callers must bound d first; values beyond int64 cents wrap. ParseAmount
// is the checked entry point for external input.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(centsPerUnit).Round(0).IntPart()
}

// FormatAmount renders cents as a fixed two-place decimal string, e.g. "85.00".
func FormatAmount(cents int64) string {
	return ToDecimal(cents).StringFixed(minorUnitScale)
}

// ParseAmount parses a positive major-unit amount such as "100.00" into cents.
// More than two fractional digits is rejected rather than silently rounded.
func ParseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, raw)
	}
	if d.Exponent() < -minorUnitScale && !d.Equal(d.Truncate(minorUnitScale)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, raw, minorUnitScale)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	scaled := d.Mul(centsPerUnit).Round(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q exceeds the largest representable amount", ErrInvalidAmount, raw)
	}
	return scaled.IntPart(), nil
}

// PlatformFee computes round(amount * percent / 100) in cents.
func PlatformFee(amount int64, percent decimal.Decimal) int64 {
	if amount <= 0 || percent.Sign() <= 0 {
		return 0
	}
	fee := ToDecimal(amount).Mul(percent).Div(decimal.NewFromInt(100)).Round(minorUnitScale)
	cents := FromDecimal(fee)
	if cents > amount {
		return amount
	}
	return cents
}

// ValidateCurrency normalizes the currency code and rejects anything but USD.
func ValidateCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return CurrencyUSD, nil
	}
	if c != CurrencyUSD {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, c)
	}
	return c, nil
}
