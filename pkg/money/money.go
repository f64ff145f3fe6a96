// Package money holds amount arithmetic on integer minor units (drops).
// Amounts never pass through float64.
package money

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

// MaxDigits bounds an amount so it fits the varchar(40) columns it is stored in.
const MaxDigits = 38

var (
	ErrInvalidAmount = errors.New("amount must be a non-negative integer string of minor units")
	ErrInvalidRate   = errors.New("rate must be a non-negative decimal fraction")

	reDrops = regexp.MustCompile(`^[0-9]+$`)
	reRate  = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParseDrops parses "1050000" style amounts. Signs, exponents and fractions are rejected.
func ParseDrops(s string) (decimal.Decimal, error) {
	if len(s) == 0 || len(s) > MaxDigits || !reDrops.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate parses a plain decimal fraction such as "0.035".
func ParseRate(s string) (decimal.Decimal, error) {
	if len(s) == 0 || len(s) > 32 || !reRate.MatchString(s) {
		return decimal.Zero, ErrInvalidRate
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

// IsDrops reports whether d is a valid stored amount.
func IsDrops(d decimal.Decimal) bool {
	return d.IsInteger() && !d.IsNegative() && len(d.String()) <= MaxDigits
}

// Interest is floor(principal * rate).
func Interest(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Mul(rate).Floor()
}

// TotalOwed is principal + floor(principal * rate).
func TotalOwed(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Add(Interest(principal, rate))
}

func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Credit returns how much of payment may be applied without exceeding owed,
// and the excess that cannot be credited.
func Credit(paid, owed, payment decimal.Decimal) (credited, excess decimal.Decimal) {
	remaining := owed.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	credited = decimal.Min(payment, remaining)
	return credited, payment.Sub(credited)
}
