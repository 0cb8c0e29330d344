package goldledger

import (
	"context"

	"goldshop/internal/core/id"
)

// Repository persists gold ledger entries.
type Repository interface {
	// Insert stores e; false means the idempotency key was already used.
	Insert(ctx context.Context, e *Entry) (bool, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Entry, error)
	ListByParty(ctx context.Context, partyID id.ID) ([]*Entry, error)
	ListByRecorder(ctx context.Context, recorderID id.ID) ([]*Entry, error)
	TotalsByParty(ctx context.Context, partyID id.ID) (Totals, error)
}
