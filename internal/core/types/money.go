// Package types provides the numeric value types used by stock and ledger.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// MoneyPlaces is the number of fractional digits kept for stored amounts.
const MoneyPlaces int32 = 2

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineAmount returns price * quantity rounded to cents.
func LineAmount(price Money, qty Quantity) Money {
	return price.Mul(qty.Decimal()).Round(MoneyPlaces)
}

// SumMoney adds the given amounts.
func SumMoney(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FitsMoneyPlaces reports whether m has no digits beyond MoneyPlaces.
func FitsMoneyPlaces(m Money) bool {
	return m.Equal(m.Round(MoneyPlaces))
}
