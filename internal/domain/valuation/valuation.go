// Package valuation converts gold weight, purity and market rate into money.
//
// All functions are pure. Intermediate values are carried at full decimal
// precision; only the final amount is rounded.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/types"
)

// Purchase is the valuation of one purchased gold lot.
type Purchase struct {
	Weight           types.Weight    `json:"weight_grams" precision:"weight"`
	EnteredPurity    types.Purity    `json:"entered_purity"`
	ValuationPurity  types.Purity    `json:"valuation_purity"`
	ConversionFactor decimal.Decimal `json:"conversion_factor" precision:"factor"`
	Rate             types.Rate      `json:"rate_per_gram" precision:"rate"`

	// Unrounded intermediate steps, kept for the audit breakdown.
	PurityRatio     decimal.Decimal `json:"-"`
	AdjustedWeight  types.Weight    `json:"adjusted_weight" precision:"weight"`
	ConvertedWeight types.Weight    `json:"converted_weight" precision:"weight"`

	Amount types.Money `json:"amount" precision:"money"`
}

// PurchaseAmount values a purchase lot:
//
//	purity_ratio     = entered_purity / 916
//	adjusted_weight  = weight * purity_ratio
//	converted_weight = adjusted_weight / conversion_factor
//	amount           = converted_weight * rate
//
// The amount is computed as weight*purity*rate / (916*factor) in a single
// division and rounded to 3 places.
func PurchaseAmount(weight types.Weight, purity types.Purity, factor decimal.Decimal, rate types.Rate) (Purchase, error) {
	if !weight.IsPositive() {
		return Purchase{}, apperror.NewValidation("weight must be positive").
			WithDetail("field", "weight_grams").
			WithDetail("value", weight.String())
	}
	if err := purity.Validate("entered_purity"); err != nil {
		return Purchase{}, err
	}
	if err := types.ValidateConversionFactor(factor); err != nil {
		return Purchase{}, err
	}
	if !rate.IsPositive() {
		return Purchase{}, apperror.NewValidation("rate must be positive").
			WithDetail("field", "rate_per_gram").
			WithDetail("value", rate.String())
	}

	base := types.ValuationPurity.Decimal()
	ratio := purity.Decimal().Div(base)
	adjusted := weight.Mul(purity.Decimal()).Div(base)
	converted := weight.Mul(purity.Decimal()).Div(base.Mul(factor))
	amount := weight.Mul(purity.Decimal()).Mul(rate).Div(base.Mul(factor))

	return Purchase{
		Weight:           weight,
		EnteredPurity:    purity,
		ValuationPurity:  types.ValuationPurity,
		ConversionFactor: factor,
		Rate:             rate,
		PurityRatio:      ratio,
		AdjustedWeight:   adjusted,
		ConvertedWeight:  converted,
		Amount:           types.RoundMoney(amount),
	}, nil
}

// Breakdown is the human-readable calculation recorded in stock movement notes.
func (p Purchase) Breakdown() string {
	return fmt.Sprintf(
		"weight %sg x (purity %d / %d = %s) = %sg; / factor %s = %sg; x rate %s = %s",
		p.Weight.StringFixed(types.WeightPlaces),
		p.EnteredPurity, p.ValuationPurity,
		p.PurityRatio.StringFixed(6),
		p.AdjustedWeight.StringFixed(types.WeightPlaces),
		p.ConversionFactor.StringFixed(types.FactorPlaces),
		p.ConvertedWeight.StringFixed(types.WeightPlaces),
		p.Rate.StringFixed(types.RatePlaces),
		p.Amount.StringFixed(types.MoneyPlaces),
	)
}

// Lot is one line of a purchase to be valued.
type Lot struct {
	Weight types.Weight
	Purity types.Purity
	Rate   types.Rate
}

// PurchaseTotal values every lot with the shared conversion factor and sums
// the rounded line amounts.
func PurchaseTotal(lots []Lot, factor decimal.Decimal) (types.Money, []Purchase, error) {
	if len(lots) == 0 {
		return decimal.Zero, nil, apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	total := decimal.Zero
	valuations := make([]Purchase, 0, len(lots))
	for i, lot := range lots {
		v, err := PurchaseAmount(lot.Weight, lot.Purity, factor, lot.Rate)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return decimal.Zero, nil, appErr.WithDetail("lineNo", i+1)
			}
			return decimal.Zero, nil, err
		}
		total = total.Add(v.Amount)
		valuations = append(valuations, v)
	}
	return types.RoundMoney(total), valuations, nil
}

// MakingChargeType selects the making charge formula.
type MakingChargeType string

const (
	MakingChargeFlat    MakingChargeType = "flat"
	MakingChargePerGram MakingChargeType = "per_gram"
	MakingChargePerInch MakingChargeType = "per_inch"
)

// Valid reports whether t is a known formula.
func (t MakingChargeType) Valid() bool {
	switch t {
	case MakingChargeFlat, MakingChargePerGram, MakingChargePerInch:
		return true
	}
	return false
}

// MakingCharge computes the labour charge of one line item.
//
// per_inch without a positive inches value yields zero, not an error.
// An empty type is treated as flat.
func MakingCharge(kind MakingChargeType, value decimal.Decimal, netWeight types.Weight, inches *decimal.Decimal) (types.Money, error) {
	if value.IsNegative() {
		return decimal.Zero, apperror.NewValidation("making charge value must not be negative").
			WithDetail("field", "making_charge_value")
	}

	switch kind {
	case MakingChargeFlat, "":
		return types.RoundMoney(value), nil
	case MakingChargePerGram:
		if netWeight.IsNegative() {
			return decimal.Zero, apperror.NewValidation("net weight must not be negative").
				WithDetail("field", "net_weight")
		}
		return types.RoundMoney(value.Mul(netWeight)), nil
	case MakingChargePerInch:
		if inches == nil || !inches.IsPositive() {
			return decimal.Zero, nil
		}
		return types.RoundMoney(value.Mul(*inches)), nil
	default:
		return decimal.Zero, apperror.NewValidation(fmt.Sprintf("unknown making charge type %q", kind)).
			WithDetail("field", "making_charge_type")
	}
}

// GoldReceivedValue values gold handed over by a customer: weight x rate,
// rounded to 2 places.
func GoldReceivedValue(weight types.Weight, rate types.Rate) types.Money {
	if !weight.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return weight.Mul(rate).Round(types.ValuePlaces)
}
