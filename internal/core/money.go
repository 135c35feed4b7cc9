// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents; decimal input is parsed with
// shopspring/decimal so that more than two fractional digits is rejected
// rather than silently rounded.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrTooManyDecimal = errors.New("amount must have at most 2 decimal places")
)

// ParseAmount converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Only
// strictly positive values with at most two decimal places are accepted.
//
// Examples:
//
//	ParseAmount("12.34") -> 1234 cents
//	ParseAmount("12,3")  -> 1230 cents
//	ParseAmount("12.345") -> ErrTooManyDecimal
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// FromDecimal converts an exact decimal into Money.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(2)) {
		return Money{}, ErrTooManyDecimal
	}
	cents := d.Shift(2)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(1<<53)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Float64 returns the amount in currency units for rate arithmetic and display.
// Use cents for sums to avoid floating-point drift.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals, e.g. "1250.00".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
