// Package types provides the numeric value objects of the ledger core.
//
// Precision contract (persisted and returned):
//
//	money   3 decimal places, round half away from zero
//	weight  3 decimal places (grams)
//	rate    2 decimal places (money per gram)
//	purity  integer 1..999 (parts per thousand)
package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
)

// Money is a monetary value (OMR) with full precision until rounded.
type Money = decimal.Decimal

// Weight is a gold weight in grams.
type Weight = decimal.Decimal

// Rate is a price per gram.
type Rate = decimal.Decimal

// Decimal places per value kind.
const (
	MoneyPlaces  int32 = 3
	WeightPlaces int32 = 3
	RatePlaces   int32 = 2
	FactorPlaces int32 = 3

	// ValuePlaces is used for gold-received value (rate x weight shown in 2 dp).
	ValuePlaces int32 = 2
)

var (
	// Tolerance is the settlement tolerance: a balance at or below it counts as paid.
	Tolerance = decimal.New(1, -3)

	// MaxTransactionAmount bounds a single ledger transaction.
	MaxTransactionAmount = decimal.NewFromInt(1_000_000)

	// MaxOpeningBalance bounds an account opening balance in both directions.
	MaxOpeningBalance = decimal.NewFromInt(1_000_000)

	// MaxMovementDelta bounds a stock movement qty/weight delta in both directions.
	MaxMovementDelta = decimal.NewFromInt(10_000)

	// DefaultConversionFactor is used when the shop has not configured one.
	DefaultConversionFactor = decimal.RequireFromString("0.920")
)

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds to the persisted money precision.
func RoundMoney(d Money) Money { return d.Round(MoneyPlaces) }

// RoundWeight rounds to the persisted weight precision.
func RoundWeight(d Weight) Weight { return d.Round(WeightPlaces) }

// RoundRate rounds to the persisted rate precision.
func RoundRate(d Rate) Rate { return d.Round(RatePlaces) }

// RoundFactor rounds a conversion factor.
func RoundFactor(d decimal.Decimal) decimal.Decimal { return d.Round(FactorPlaces) }

// IsSettled reports whether a remaining balance is paid off within Tolerance.
func IsSettled(balance Money) bool {
	return balance.LessThanOrEqual(Tolerance)
}

// ExceedsBy reports whether requested is larger than available by more than Tolerance.
func ExceedsBy(requested, available Money) bool {
	return requested.Sub(available).GreaterThan(Tolerance)
}

// PositiveMoney validates a strictly positive amount bounded by MaxTransactionAmount.
func PositiveMoney(field string, d Money) (Money, error) {
	if !d.IsPositive() {
		return d, apperror.NewValidation(field+" must be positive").
			WithDetail("field", field).
			WithDetail("value", d.String())
	}
	if d.GreaterThan(MaxTransactionAmount) {
		return d, apperror.NewValidation(field+" exceeds the maximum transaction amount").
			WithDetail("field", field).
			WithDetail("max", MaxTransactionAmount.String())
	}
	return RoundMoney(d), nil
}

// PositiveWeight validates a strictly positive weight.
func PositiveWeight(field string, w Weight) (Weight, error) {
	if !w.IsPositive() {
		return w, apperror.NewValidation(field+" must be positive").
			WithDetail("field", field).
			WithDetail("value", w.String())
	}
	return RoundWeight(w), nil
}

// NonNegative validates d >= 0.
func NonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return apperror.NewValidation(field+" must not be negative").
			WithDetail("field", field).
			WithDetail("value", d.String())
	}
	return nil
}

// ValidateConversionFactor checks 0 < f <= 1 with at most FactorPlaces
// decimals.
func ValidateConversionFactor(f decimal.Decimal) error {
	if !f.IsPositive() || f.GreaterThan(decimal.NewFromInt(1)) {
		return apperror.NewValidation("conversion factor must be in (0, 1]").
			WithDetail("field", "conversion_factor").
			WithDetail("value", f.String())
	}
	if !f.Equal(RoundFactor(f)) {
		return apperror.NewValidation(fmt.Sprintf("conversion factor allows at most %d decimal places", FactorPlaces)).
			WithDetail("field", "conversion_factor").
			WithDetail("value", f.String())
	}
	return nil
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
