package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/infrastructure/storage/postgres"
)

const transactionsTable = "transactions"

var transactionCols = postgres.ExtractDBColumns[ledger.Transaction]()

// TransactionRepo implements ledger.TransactionRepository.
type TransactionRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.TransactionRepository = (*TransactionRepo)(nil)

// NewTransactionRepo creates a new transaction repository.
func NewTransactionRepo(txm *postgres.TxManager) *TransactionRepo {
	return &TransactionRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert stores t; a duplicate idempotency key inserts nothing.
func (r *TransactionRepo) Insert(ctx context.Context, t *ledger.Transaction) (bool, error) {
	if err := precision.Normalize(t); err != nil {
		return false, apperror.NewInternal(err)
	}
	data := postgres.FilterColumns(postgres.StructToMap(t), transactionCols)

	sql, args, err := r.builder.Insert(transactionsTable).SetMap(data).
		Suffix("ON CONFLICT (idempotency_key) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepo) get(ctx context.Context, txnID id.ID, lock bool) (*ledger.Transaction, error) {
	q := r.builder.Select(transactionCols...).From(transactionsTable).Where(squirrel.Eq{"id": txnID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t ledger.Transaction
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transaction", txnID)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// GetByID retrieves a transaction, deleted or not.
func (r *TransactionRepo) GetByID(ctx context.Context, txnID id.ID) (*ledger.Transaction, error) {
	return r.get(ctx, txnID, false)
}

// GetForUpdate retrieves a transaction with a row lock.
func (r *TransactionRepo) GetForUpdate(ctx context.Context, txnID id.ID) (*ledger.Transaction, error) {
	return r.get(ctx, txnID, true)
}

// MarkDeleted soft-deletes a transaction.
func (r *TransactionRepo) MarkDeleted(ctx context.Context, txnID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE transactions
		SET is_deleted = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, txnID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("transaction", txnID)
	}
	return nil
}

// applyFilter narrows q (aliased t, joined to accounts a) by filter.
// Deleted rows are always excluded.
func applyFilter(q squirrel.SelectBuilder, filter ledger.TransactionFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"t.is_deleted": false})
	if len(filter.AccountIDs) > 0 {
		q = q.Where(squirrel.Eq{"t.account_id": filter.AccountIDs})
	}
	if len(filter.AccountTypes) > 0 {
		types := make([]string, len(filter.AccountTypes))
		for i, at := range filter.AccountTypes {
			types[i] = string(at)
		}
		q = q.Where(squirrel.Eq{"a.account_type": types})
	}
	if filter.PartyID != nil {
		q = q.Where(squirrel.Eq{"t.party_id": *filter.PartyID})
	}
	if filter.ReferenceType != "" {
		q = q.Where(squirrel.Eq{"t.reference_type": filter.ReferenceType})
	}
	if filter.ReferenceID != nil {
		q = q.Where(squirrel.Eq{"t.reference_id": *filter.ReferenceID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"t.date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.Lt{"t.date": *filter.DateTo})
	}
	return q
}

func (r *TransactionRepo) from() squirrel.SelectBuilder {
	return r.builder.Select().From(transactionsTable + " t").Join(accountsTable + " a ON a.id = t.account_id")
}

// List returns matching transactions in date order.
func (r *TransactionRepo) List(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	cols := make([]string, len(transactionCols))
	for i, c := range transactionCols {
		cols[i] = "t." + c
	}
	sql, args, err := applyFilter(r.from().Columns(cols...), filter).OrderBy("t.date", "t.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*ledger.Transaction
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

type totalsRow struct {
	AccountID id.ID           `db:"account_id"`
	Debit     decimal.Decimal `db:"debit"`
	Credit    decimal.Decimal `db:"credit"`
	Count     int             `db:"count"`
}

// Totals sums matching debit and credit amounts per account.
func (r *TransactionRepo) Totals(ctx context.Context, filter ledger.TransactionFilter) (map[id.ID]ledger.Totals, error) {
	q := r.from().Columns(
		"t.account_id",
		"COALESCE(SUM(t.amount) FILTER (WHERE t.transaction_type = 'debit'), 0) AS debit",
		"COALESCE(SUM(t.amount) FILTER (WHERE t.transaction_type = 'credit'), 0) AS credit",
		"COUNT(*) AS count",
	)
	sql, args, err := applyFilter(q, filter).GroupBy("t.account_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []totalsRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}

	out := make(map[id.ID]ledger.Totals, len(rows))
	for _, row := range rows {
		out[row.AccountID] = ledger.Totals{Debit: row.Debit, Credit: row.Credit, Count: row.Count}
	}
	return out, nil
}
