// Package register_repo provides PostgreSQL implementations of the gold
// ledger and stock movement registers. Both tables are append-only.
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
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "stock_movements"

var stockCols = postgres.ExtractDBColumns[stock.Movement]()

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func stockRow(m *stock.Movement) []any {
	data := postgres.StructToMap(m)
	row := make([]any, len(stockCols))
	for i, col := range stockCols {
		row[i] = data[col]
	}
	return row
}

// CreateMovements implements stock.Repository. Inside a transaction the
// inserts go out as one pipelined batch.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []*stock.Movement) (int, error) {
	if len(movements) == 0 {
		return 0, nil
	}
	for _, m := range movements {
		if err := precision.Normalize(m); err != nil {
			return 0, apperror.NewInternal(err)
		}
	}

	if r.txm.GetTx(ctx) != nil {
		queries := make([]postgres.BatchQuery, 0, len(movements))
		for _, m := range movements {
			sql, args, err := r.insert().Values(stockRow(m)...).ToSql()
			if err != nil {
				return 0, fmt.Errorf("build insert: %w", err)
			}
			queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
		}
		n, err := postgres.NewBatchExecutor(r.txm).ExecuteBatch(ctx, queries)
		if err != nil {
			return 0, fmt.Errorf("insert movements: %w", err)
		}
		return int(n), nil
	}

	q := r.insert()
	for _, m := range movements {
		q = q.Values(stockRow(m)...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert movements: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *StockRepo) insert() squirrel.InsertBuilder {
	return r.builder.Insert(stockMovementsTable).Columns(stockCols...).
		Suffix("ON CONFLICT (idempotency_key) WHERE idempotency_key <> '' DO NOTHING")
}

// LoadOpening bulk loads opening stock through COPY. The movements must
// not carry idempotency keys; it must run inside a transaction.
func (r *StockRepo) LoadOpening(ctx context.Context, movements []*stock.Movement) (int64, error) {
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		if m.IdempotencyKey != "" {
			return 0, apperror.NewValidation("opening stock is loaded without idempotency keys").
				WithDetail("idempotency_key", m.IdempotencyKey)
		}
		if err := precision.Normalize(m); err != nil {
			return 0, apperror.NewInternal(err)
		}
		rows = append(rows, stockRow(m))
	}
	n, err := postgres.NewBatchInserter(r.txm).CopyFromSlice(ctx, stockMovementsTable, stockCols, rows)
	if err != nil {
		return 0, fmt.Errorf("copy movements: %w", err)
	}
	return n, nil
}

// GetMovementsByRecorder retrieves the live movements of a document.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]*stock.Movement, error) {
	sql, args, err := r.builder.Select(stockCols...).From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID, "is_deleted": false}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*stock.Movement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetHeaderTotals implements stock.Repository.
func (r *StockRepo) GetHeaderTotals(ctx context.Context, headerID id.ID) (stock.HeaderTotals, error) {
	var weight decimal.Decimal
	totals := stock.HeaderTotals{HeaderID: headerID}

	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(qty_delta), 0), COALESCE(SUM(weight_delta), 0)
		FROM stock_movements
		WHERE header_id = $1 AND NOT is_deleted
	`, headerID).Scan(&totals.Qty, &weight)
	if err != nil {
		return totals, fmt.Errorf("sum movements: %w", err)
	}
	totals.Weight = types.RoundWeight(weight)
	return totals, nil
}
