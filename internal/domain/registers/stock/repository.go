package stock

import (
	"context"

	"goldshop/internal/core/id"
)

// Repository persists stock movements.
type Repository interface {
	// CreateMovements batch inserts movements, skipping rows whose
	// idempotency key already exists. It returns the number inserted.
	CreateMovements(ctx context.Context, movements []*Movement) (int, error)

	// GetMovementsByRecorder retrieves all movements produced by a document.
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]*Movement, error)

	// GetHeaderTotals sums the non-deleted movements of a header.
	GetHeaderTotals(ctx context.Context, headerID id.ID) (HeaderTotals, error)
}
