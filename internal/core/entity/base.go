// Package entity provides the base records shared by ledger entities,
// documents and register movements.
package entity

import (
	"context"
	"time"

	"goldshop/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains the fields every persisted record carries.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	// IsDeleted marks soft-deleted records; they are excluded from every
	// balance, summary and remaining-amount computation.
	IsDeleted bool `db:"is_deleted" json:"is_deleted"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewBaseEntity creates a new BaseEntity with generated ID and timestamps.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch increments version and refreshes UpdatedAt.
func (b *BaseEntity) Touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

// MarkDeleted sets the soft-delete flag.
func (b *BaseEntity) MarkDeleted() {
	b.IsDeleted = true
	b.UpdatedAt = time.Now().UTC()
}

// SetCreatedBy implements the created-by enrichment hook contract.
func (b *BaseEntity) SetCreatedBy(actor string) {
	if b.CreatedBy == "" {
		b.CreatedBy = actor
	}
}

// GetID returns the record id.
func (b *BaseEntity) GetID() id.ID {
	return b.ID
}
