// Package ledger_repo provides PostgreSQL implementations of the account
// and transaction repositories.
package ledger_repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/infrastructure/storage/postgres"
)

const accountsTable = "accounts"

var accountCols = postgres.ExtractDBColumns[ledger.Account]()

// AccountRepo implements ledger.AccountRepository.
type AccountRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.AccountRepository = (*AccountRepo)(nil)

// NewAccountRepo creates a new account repository.
func NewAccountRepo(txm *postgres.TxManager) *AccountRepo {
	return &AccountRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *ledger.Account) error {
	if err := precision.Normalize(a); err != nil {
		return apperror.NewInternal(err)
	}
	data := postgres.FilterColumns(postgres.StructToMap(a), accountCols)

	sql, args, err := r.builder.Insert(accountsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	sql, args, err := r.builder.Select(accountCols...).From(accountsTable).
		Where(squirrel.Eq{"id": accountID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var acc ledger.Account
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &acc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", accountID)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &acc, nil
}

// LockForUpdate implements ledger.AccountRepository. Rows are locked in
// ascending id order, so concurrent postings touching overlapping
// accounts cannot deadlock.
func (r *AccountRepo) LockForUpdate(ctx context.Context, accountIDs []id.ID) (map[id.ID]*ledger.Account, error) {
	ids := slices.Clone(accountIDs)
	slices.SortFunc(ids, func(a, b id.ID) int { return slices.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	sql, args, err := r.builder.Select(accountCols...).From(accountsTable).
		Where(squirrel.Eq{"id": ids}).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*ledger.Account
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}

	out := make(map[id.ID]*ledger.Account, len(rows))
	for _, acc := range rows {
		out[acc.ID] = acc
	}
	for _, accID := range ids {
		if _, ok := out[accID]; !ok {
			return nil, apperror.NewNotFound("account", accID)
		}
	}
	return out, nil
}

// List returns accounts ordered by name.
func (r *AccountRepo) List(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	q := r.builder.Select(accountCols...).From(accountsTable)
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"is_deleted": false})
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		q = q.Where(squirrel.Eq{"account_type": types})
	}

	sql, args, err := q.OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*ledger.Account
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// AdjustBalance applies delta in the database, never read-modify-write in Go.
func (r *AccountRepo) AdjustBalance(ctx context.Context, accountID id.ID, delta decimal.Decimal) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE accounts
		SET current_balance = current_balance + $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
	`, delta, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("account", accountID)
	}
	return nil
}

// SetOpeningBalance implements ledger.AccountRepository.
func (r *AccountRepo) SetOpeningBalance(ctx context.Context, accountID id.ID, opening, delta decimal.Decimal) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE accounts
		SET opening_balance = $1,
		    current_balance = current_balance + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3
	`, opening, delta, accountID)
	if err != nil {
		return fmt.Errorf("set opening balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("account", accountID)
	}
	return nil
}
