package reports

import (
	"context"
	"time"

	"goldshop/internal/core/id"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/goldledger"
)

// Repository defines report data access.
type Repository interface {
	// InvoiceBalances lists non-deleted invoices, optionally of one party.
	InvoiceBalances(ctx context.Context, partyID *id.ID) ([]InvoiceBalance, error)

	// PurchaseBalances lists non-deleted purchases of a party.
	PurchaseBalances(ctx context.Context, partyID id.ID) ([]PurchaseBalance, error)

	// GetClosing returns the closing of day, or a not-found error.
	GetClosing(ctx context.Context, day time.Time) (*DailyClosing, error)

	// LastClosingBefore returns the latest closing before day, or nil.
	LastClosingBefore(ctx context.Context, day time.Time) (*DailyClosing, error)

	CreateClosing(ctx context.Context, c *DailyClosing) error
}

// AccountReader lists accounts. ledger.AccountRepository implements it.
type AccountReader interface {
	List(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error)
}

// TransactionTotals sums transactions per account.
// ledger.TransactionRepository implements it.
type TransactionTotals interface {
	Totals(ctx context.Context, filter ledger.TransactionFilter) (map[id.ID]ledger.Totals, error)
}

// GoldTotals sums gold ledger entries. goldledger.Service implements it.
type GoldTotals interface {
	TotalsByParty(ctx context.Context, partyID id.ID) (goldledger.Totals, error)
}
