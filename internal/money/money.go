// Package money provides the exact-decimal arithmetic conventions used
// across the P&L engine. All quantities and USD amounts are
// shopspring/decimal — never float64 for money. Values enter the system
// from string or integer representations only; constructing a decimal
// from a binary float loses precision at ingestion and is not offered.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// QuantityScale is the number of fractional digits kept for token
	// quantities (18, matching wei-level granularity).
	QuantityScale int32 = 18

	// USDScale is the number of fractional digits kept for USD amounts.
	USDScale int32 = 8
)

var (
	// ErrDivisionByZero is returned by Div on a zero divisor.
	ErrDivisionByZero = errors.New("money: division by zero")

	// ErrMalformedDecimal is returned by Parse on input that is not a
	// valid decimal string.
	ErrMalformedDecimal = errors.New("money: malformed decimal string")
)

// Parse converts a decimal string into a Decimal. Malformed input is a
// structural error, never silently absorbed.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedDecimal, s)
	}
	return d, nil
}

// Div divides a by b, failing on a zero divisor instead of panicking.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return a.Div(b), nil
}

// RoundBank rounds to `places` fractional digits using banker's rounding
// (round half to even): 2.5 → 2, 3.5 → 4, 2.25 at one place → 2.2.
func RoundBank(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

// Quantity normalizes a token quantity to QuantityScale digits.
func Quantity(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(QuantityScale)
}

// USD normalizes a USD amount to USDScale digits.
func USD(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(USDScale)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampNonNegative floors a quantity at zero. Replay arithmetic can
// drive a remainder fractionally below zero on malformed input; the
// ledger treats that as a data-quality event, not a fatal error.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
