// Package core provides the domain model and the money/date codec.
//
// This file contains functions for parsing monetary amounts from feed strings
// and converting between cents and decimal representations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseCents converts a decimal string to integer cents.
//
// The value is scaled by 100 and truncated toward zero, so sub-cent digits are
// dropped rather than rounded. Negative values are accepted because feeds carry
// refunds and credits. Returns ErrInvalidAmount for empty or non-numeric input.
//
// Examples:
//
//	ParseCents("12.50") -> 1250, nil
//	ParseCents("9.999") -> 999, nil
//	ParseCents("-0.5")  -> -50, nil
func ParseCents(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	scaled := d.Mul(hundred).Truncate(0)
	if scaled.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: scaled.IntPart()}, nil
}

// maxCents bounds parsed amounts well inside int64.
const maxCents = 1 << 53

// FromDecimal converts an exact decimal amount to Money using the same
// truncation rule as ParseCents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Truncate(0).IntPart()}
}

// Decimal returns the amount as an exact decimal in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two fraction digits, e.g. "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m minus o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// IsZero reports whether the amount is zero cents.
func (m Money) IsZero() bool { return m.Cents == 0 }
