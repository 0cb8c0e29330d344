package entity

import (
	"time"

	"goldshop/internal/core/id"
)

// Direction is the flow of gold or stock relative to the shop.
type Direction string

const (
	// DirectionIn moves gold or stock into the shop.
	DirectionIn Direction = "IN"
	// DirectionOut moves gold or stock out of the shop.
	DirectionOut Direction = "OUT"
)

// Valid reports whether d is IN or OUT.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Opposite returns the reversing direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// MovementBase contains common fields for append-only register rows
// (gold ledger entries, stock movements). Rows are never updated; the only
// mutation is a soft delete.
type MovementBase struct {
	ID id.ID `db:"id" json:"id"`

	// RecorderType/RecorderID back-link to the document that produced the row
	// (invoice, purchase, return). Empty for manual entries.
	RecorderType string `db:"recorder_type" json:"reference_type,omitempty"`
	RecorderID   *id.ID `db:"recorder_id" json:"reference_id,omitempty"`

	// Period is the business date of the movement
	Period time.Time `db:"period" json:"date"`

	// IdempotencyKey is derived from the triggering event id; replays of
	// the same event never insert a second row.
	IdempotencyKey string `db:"idempotency_key" json:"-"`

	IsDeleted bool      `db:"is_deleted" json:"is_deleted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
}

// NewMovementBase creates a movement base with a generated id.
func NewMovementBase(recorderType string, recorderID *id.ID, period time.Time) MovementBase {
	if period.IsZero() {
		period = time.Now().UTC()
	}
	return MovementBase{
		ID:           id.New(),
		RecorderType: recorderType,
		RecorderID:   recorderID,
		Period:       period,
		CreatedAt:    time.Now().UTC(),
	}
}
