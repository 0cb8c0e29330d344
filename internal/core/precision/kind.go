// Package precision is the single enforcement point for numeric precision at
// the storage boundary.
//
// Every repository passes documents through Normalize before writing and
// after reading, and every wire/audit/outbox payload goes through ToWire.
// Both walk arbitrarily nested values (documents, line items, maps produced
// by pgx row scans) and never skip nested objects.
//
// The kind of a field comes from its `precision:"..."` struct tag or, for
// map documents, from the field-name registry in this file.
package precision

import (
	"sync"

	"goldshop/internal/core/types"
)

// TagName is the struct tag read by Normalize and ToWire.
const TagName = "precision"

// Kind is the semantic class of a numeric field.
type Kind string

const (
	KindNone   Kind = ""
	KindMoney  Kind = "money"
	KindWeight Kind = "weight"
	KindRate   Kind = "rate"
	KindPurity Kind = "purity"
	KindFactor Kind = "factor"
	// KindValue is a 2 dp money value (gold received: weight x rate).
	KindValue Kind = "value"
)

// Places returns the decimal places for k; ok is false for KindNone and
// unknown kinds, which are left untouched.
func (k Kind) Places() (int32, bool) {
	switch k {
	case KindMoney:
		return types.MoneyPlaces, true
	case KindWeight:
		return types.WeightPlaces, true
	case KindRate:
		return types.RatePlaces, true
	case KindFactor:
		return types.FactorPlaces, true
	case KindValue:
		return types.ValuePlaces, true
	case KindPurity:
		return 0, true
	default:
		return 0, false
	}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Kind{
		// money
		"amount":              KindMoney,
		"amount_total":        KindMoney,
		"paid_amount":         KindMoney,
		"paid_amount_money":   KindMoney,
		"balance_due":         KindMoney,
		"balance_due_money":   KindMoney,
		"subtotal":            KindMoney,
		"discount_amount":     KindMoney,
		"taxable_amount":      KindMoney,
		"vat_amount":          KindMoney,
		"vat_total":           KindMoney,
		"grand_total":         KindMoney,
		"gold_value":          KindMoney,
		"making_charge":       KindMoney,
		"making_charge_value": KindMoney,
		"line_total":          KindMoney,
		"opening_balance":     KindMoney,
		"current_balance":     KindMoney,
		"total_amount":        KindMoney,
		"refund_money_amount": KindMoney,
		"debit":               KindMoney,
		"credit":              KindMoney,
		"net":                 KindMoney,
		"total_in":            KindMoney,
		"total_out":           KindMoney,
		"net_flow":            KindMoney,
		"outstanding":         KindMoney,
		"total_customer_due":  KindMoney,
		"money_due_from_party": KindMoney,
		"money_due_to_party":  KindMoney,
		"net_money_balance":   KindMoney,
		"opening_cash":        KindMoney,
		"expected_closing":    KindMoney,
		"actual_closing":      KindMoney,
		"difference":          KindMoney,
		"advance_value":       KindMoney,
		"exchange_value":      KindMoney,
		"gold_deduction":      KindMoney,

		// weight
		"weight_grams":           KindWeight,
		"gross_weight":           KindWeight,
		"stone_weight":           KindWeight,
		"net_weight":             KindWeight,
		"weight_in":              KindWeight,
		"weight_out":             KindWeight,
		"total_weight_grams":     KindWeight,
		"weight_delta":           KindWeight,
		"advance_in_gold_grams":  KindWeight,
		"exchange_in_gold_grams": KindWeight,
		"gold_received_weight":   KindWeight,
		"refund_gold_grams":      KindWeight,
		"gold_due_from_party":    KindWeight,
		"gold_due_to_party":      KindWeight,
		"net_gold_balance":       KindWeight,
		"adjusted_weight":        KindWeight,
		"converted_weight":       KindWeight,

		// rate
		"rate":               KindRate,
		"rate_per_gram":      KindRate,
		"metal_rate":         KindRate,
		"gold_received_rate": KindRate,
		"advance_gold_rate":  KindRate,
		"exchange_gold_rate": KindRate,

		// purity
		"purity":                 KindPurity,
		"entered_purity":         KindPurity,
		"purity_entered":         KindPurity,
		"valuation_purity":       KindPurity,
		"valuation_purity_fixed": KindPurity,
		"gold_received_purity":   KindPurity,

		"conversion_factor":   KindFactor,
		"gold_received_value": KindValue,
	}
)

// Register adds or overrides the kind of a map field name.
func Register(field string, kind Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[field] = kind
}

// KindOf returns the registered kind for a map field name.
func KindOf(field string) Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[field]
}
