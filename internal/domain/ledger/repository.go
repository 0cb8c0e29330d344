package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/id"
)

// AccountRepository persists accounts.
type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, accountID id.ID) (*Account, error)

	// LockForUpdate reads and row-locks the given accounts in ascending id
	// order. Missing ids yield a not-found error.
	LockForUpdate(ctx context.Context, accountIDs []id.ID) (map[id.ID]*Account, error)

	List(ctx context.Context, filter AccountFilter) ([]*Account, error)

	// AdjustBalance applies delta atomically (current_balance + delta).
	AdjustBalance(ctx context.Context, accountID id.ID, delta decimal.Decimal) error

	// SetOpeningBalance stores a corrected opening balance and shifts the
	// current balance by the same delta.
	SetOpeningBalance(ctx context.Context, accountID id.ID, opening, delta decimal.Decimal) error
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Types          []AccountType
	IncludeDeleted bool
}

// TransactionRepository persists ledger rows.
type TransactionRepository interface {
	// Insert stores t. It returns false without error when a row with the
	// same idempotency key already exists.
	Insert(ctx context.Context, t *Transaction) (bool, error)

	GetByID(ctx context.Context, txnID id.ID) (*Transaction, error)
	GetForUpdate(ctx context.Context, txnID id.ID) (*Transaction, error)
	MarkDeleted(ctx context.Context, txnID id.ID) error

	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)

	// Totals sums non-deleted debit and credit amounts per account.
	Totals(ctx context.Context, filter TransactionFilter) (map[id.ID]Totals, error)
}

// TransactionFilter narrows transaction queries.
type TransactionFilter struct {
	AccountIDs    []id.ID
	AccountTypes  []AccountType
	PartyID       *id.ID
	ReferenceType string
	ReferenceID   *id.ID
	DateFrom      *time.Time
	// DateTo is exclusive.
	DateTo *time.Time
}

// Totals are per-account debit and credit sums.
type Totals struct {
	Debit  decimal.Decimal `json:"debit" precision:"money"`
	Credit decimal.Decimal `json:"credit" precision:"money"`
	Count  int             `json:"count"`
}

// Signed returns the net balance effect of the totals on an account of t.
func (tt Totals) Signed(t AccountType) decimal.Decimal {
	return SignedAmount(t, Debit, tt.Debit).Add(SignedAmount(t, Credit, tt.Credit))
}
