// Package goldledger provides the per-party gold weight register.
package goldledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
)

// Purpose records why gold moved.
type Purpose string

const (
	PurposeJobWork        Purpose = "job_work"
	PurposeExchange       Purpose = "exchange"
	PurposeAdvanceGold    Purpose = "advance_gold"
	PurposePayment        Purpose = "payment"
	PurposeSaleReturn     Purpose = "sale_return"
	PurposePurchaseReturn Purpose = "purchase_return"
	PurposeAdjustment     Purpose = "adjustment"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeJobWork, PurposeExchange, PurposeAdvanceGold, PurposePayment,
		PurposeSaleReturn, PurposePurchaseReturn, PurposeAdjustment:
		return true
	}
	return false
}

// Entry is one gold movement between the shop and a party.
// IN means the shop received gold from the party; OUT means the shop gave
// gold to the party.
type Entry struct {
	entity.MovementBase

	PartyID       id.ID            `db:"party_id" json:"party_id"`
	PartyName     string           `db:"party_name" json:"party_name,omitempty"`
	Type          entity.Direction `db:"entry_type" json:"type"`
	WeightGrams   decimal.Decimal  `db:"weight_grams" json:"weight_grams" precision:"weight"`
	PurityEntered types.Purity     `db:"purity_entered" json:"purity_entered"`
	Purpose       Purpose          `db:"purpose" json:"purpose"`
	Notes         string           `db:"notes" json:"notes,omitempty"`
}

// NewEntry creates an entry dated now.
func NewEntry(partyID id.ID, dir entity.Direction, weight decimal.Decimal, purity types.Purity, purpose Purpose) *Entry {
	return &Entry{
		MovementBase:  entity.NewMovementBase("", nil, time.Now().UTC()),
		PartyID:       partyID,
		Type:          dir,
		WeightGrams:   types.RoundWeight(weight),
		PurityEntered: purity,
		Purpose:       purpose,
	}
}

// Validate implements entity.Validatable.
func (e *Entry) Validate(ctx context.Context) error {
	if id.IsNil(e.PartyID) {
		return apperror.NewValidation("party is required").
			WithDetail("field", "party_id")
	}
	if !e.Type.Valid() {
		return apperror.NewValidation("type must be IN or OUT").
			WithDetail("field", "type")
	}
	if _, err := types.PositiveWeight("weight_grams", e.WeightGrams); err != nil {
		return err
	}
	if err := e.PurityEntered.Validate("purity_entered"); err != nil {
		return err
	}
	if !e.Purpose.Valid() {
		return apperror.NewValidation("unknown purpose").
			WithDetail("field", "purpose").
			WithDetail("value", string(e.Purpose))
	}
	if len(e.Notes) > 500 {
		return apperror.NewValidation("notes must be at most 500 characters").
			WithDetail("field", "notes")
	}
	return nil
}

// Totals are gold weight sums for one party.
type Totals struct {
	In    decimal.Decimal `json:"weight_in" precision:"weight"`
	Out   decimal.Decimal `json:"weight_out" precision:"weight"`
	Count int             `json:"total_entries"`
}
