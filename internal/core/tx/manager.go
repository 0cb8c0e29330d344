// Package tx defines the transaction contract used by domain services.
// The pgx implementation lives in infrastructure/storage/postgres; tests use
// the pass-through manager from infrastructure/storage/memstore.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// Every money- or gold-moving operation executes inside exactly one
// RunInTransaction call: ledger rows, account balances, register movements
// and the owning document either all commit or none do.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transactions.
// Aggregation queries use it so a report reads one consistent snapshot.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
