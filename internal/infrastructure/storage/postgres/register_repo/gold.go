package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/infrastructure/storage/postgres"
)

const goldLedgerTable = "gold_ledger"

var goldCols = postgres.ExtractDBColumns[goldledger.Entry]()

// GoldRepo implements goldledger.Repository.
type GoldRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ goldledger.Repository = (*GoldRepo)(nil)

// NewGoldRepo creates a new gold ledger repository.
func NewGoldRepo(txm *postgres.TxManager) *GoldRepo {
	return &GoldRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert implements goldledger.Repository.
func (r *GoldRepo) Insert(ctx context.Context, e *goldledger.Entry) (bool, error) {
	if err := precision.Normalize(e); err != nil {
		return false, apperror.NewInternal(err)
	}
	data := postgres.FilterColumns(postgres.StructToMap(e), goldCols)

	sql, args, err := r.builder.Insert(goldLedgerTable).SetMap(data).
		Suffix("ON CONFLICT (idempotency_key) WHERE idempotency_key <> '' DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("insert gold entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByIdempotencyKey implements goldledger.Repository.
func (r *GoldRepo) GetByIdempotencyKey(ctx context.Context, key string) (*goldledger.Entry, error) {
	sql, args, err := r.builder.Select(goldCols...).From(goldLedgerTable).
		Where(squirrel.Eq{"idempotency_key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e goldledger.Entry
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("gold_ledger", key)
		}
		return nil, fmt.Errorf("get gold entry: %w", err)
	}
	return &e, nil
}

func (r *GoldRepo) list(ctx context.Context, where squirrel.Eq) ([]*goldledger.Entry, error) {
	where["is_deleted"] = false
	sql, args, err := r.builder.Select(goldCols...).From(goldLedgerTable).
		Where(where).OrderBy("period", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*goldledger.Entry
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list gold entries: %w", err)
	}
	return out, nil
}

// ListByParty implements goldledger.Repository.
func (r *GoldRepo) ListByParty(ctx context.Context, partyID id.ID) ([]*goldledger.Entry, error) {
	return r.list(ctx, squirrel.Eq{"party_id": partyID})
}

// ListByRecorder implements goldledger.Repository.
func (r *GoldRepo) ListByRecorder(ctx context.Context, recorderID id.ID) ([]*goldledger.Entry, error) {
	return r.list(ctx, squirrel.Eq{"recorder_id": recorderID})
}

// TotalsByParty sums the live IN and OUT weight of a party.
func (r *GoldRepo) TotalsByParty(ctx context.Context, partyID id.ID) (goldledger.Totals, error) {
	var (
		in, out decimal.Decimal
		totals  goldledger.Totals
	)
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(weight_grams) FILTER (WHERE entry_type = 'IN'), 0),
		       COALESCE(SUM(weight_grams) FILTER (WHERE entry_type = 'OUT'), 0),
		       COUNT(*)
		FROM gold_ledger
		WHERE party_id = $1 AND NOT is_deleted
	`, partyID).Scan(&in, &out, &totals.Count)
	if err != nil {
		return totals, fmt.Errorf("sum gold entries: %w", err)
	}
	totals.In = types.RoundWeight(in)
	totals.Out = types.RoundWeight(out)
	return totals, nil
}
