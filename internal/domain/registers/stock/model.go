// Package stock provides the inventory stock movement register.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
)

// MovementType classifies stock movements.
type MovementType string

const (
	MovementStockIn       MovementType = "Stock IN"
	MovementStockOut      MovementType = "Stock OUT"
	MovementAdjustmentIn  MovementType = "Adjustment IN"
	MovementAdjustmentOut MovementType = "Adjustment OUT"
	MovementTransfer      MovementType = "Transfer"
)

// Direction returns the sign the deltas of t must carry; Transfer has none.
func (t MovementType) Direction() (entity.Direction, bool) {
	switch t {
	case MovementStockIn, MovementAdjustmentIn:
		return entity.DirectionIn, true
	case MovementStockOut, MovementAdjustmentOut:
		return entity.DirectionOut, true
	}
	return "", false
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	_, ok := t.Direction()
	return ok || t == MovementTransfer
}

// Movement is one append-only change of an inventory category (header).
// Purity is always the valuation purity; Notes carry the calculation
// breakdown for audit.
type Movement struct {
	entity.MovementBase

	MovementType MovementType    `db:"movement_type" json:"movement_type"`
	HeaderID     id.ID           `db:"header_id" json:"header_id"`
	HeaderName   string          `db:"header_name" json:"header_name,omitempty"`
	Description  string          `db:"description" json:"description,omitempty"`
	QtyDelta     int             `db:"qty_delta" json:"qty_delta"`
	WeightDelta  decimal.Decimal `db:"weight_delta" json:"weight_delta" precision:"weight"`
	Purity       types.Purity    `db:"purity" json:"purity"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
}

// NewMovement creates a movement at the valuation purity. weight is
// unsigned; the sign comes from movementType.
func NewMovement(movementType MovementType, headerID id.ID, qty int, weight decimal.Decimal, notes string) *Movement {
	m := &Movement{
		MovementBase: entity.NewMovementBase("", nil, time.Now().UTC()),
		MovementType: movementType,
		HeaderID:     headerID,
		QtyDelta:     qty,
		WeightDelta:  types.RoundWeight(weight.Abs()),
		Purity:       types.ValuationPurity,
		Notes:        notes,
	}
	if qty < 0 {
		m.QtyDelta = -qty
	}
	if dir, ok := movementType.Direction(); ok && dir == entity.DirectionOut {
		m.QtyDelta = -m.QtyDelta
		m.WeightDelta = m.WeightDelta.Neg()
	}
	return m
}

// Reversal returns the opposing movement (Stock IN for Stock OUT and back).
func (m *Movement) Reversal(notes string) *Movement {
	opposite := MovementStockIn
	if dir, ok := m.MovementType.Direction(); ok && dir == entity.DirectionIn {
		opposite = MovementStockOut
	}
	r := NewMovement(opposite, m.HeaderID, m.QtyDelta, m.WeightDelta, notes)
	r.HeaderName = m.HeaderName
	r.Description = m.Description
	return r
}

// Validate implements entity.Validatable.
func (m *Movement) Validate(ctx context.Context) error {
	if !m.MovementType.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", m.MovementType)).
			WithDetail("field", "movement_type")
	}
	if id.IsNil(m.HeaderID) {
		return apperror.NewValidation("inventory header is required").
			WithDetail("field", "header_id")
	}
	if m.QtyDelta == 0 && m.WeightDelta.IsZero() {
		return apperror.NewValidation("movement must change quantity or weight").
			WithDetail("field", "weight_delta")
	}

	limit := types.MaxMovementDelta
	if decimal.NewFromInt(int64(m.QtyDelta)).Abs().GreaterThan(limit) || m.WeightDelta.Abs().GreaterThan(limit) {
		return apperror.NewValidation("movement delta is out of range").
			WithDetail("field", "weight_delta").
			WithDetail("max", limit.String())
	}

	if dir, ok := m.MovementType.Direction(); ok {
		negative := m.QtyDelta < 0 || m.WeightDelta.IsNegative()
		positive := m.QtyDelta > 0 || m.WeightDelta.IsPositive()
		if (dir == entity.DirectionIn && negative) || (dir == entity.DirectionOut && positive) {
			return apperror.NewValidation("movement delta sign does not match its type").
				WithDetail("field", "movement_type")
		}
	}

	if m.Purity != types.ValuationPurity {
		return apperror.NewValidation("stock is always recorded at the valuation purity").
			WithDetail("field", "purity").
			WithDetail("value", int(m.Purity))
	}
	return nil
}

// HeaderTotals is the running stock of one inventory header.
type HeaderTotals struct {
	HeaderID id.ID           `json:"header_id"`
	Qty      int             `json:"qty"`
	Weight   decimal.Decimal `json:"total_weight_grams" precision:"weight"`
}
