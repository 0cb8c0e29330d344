// Package report_repo provides the PostgreSQL implementation of the
// aggregation reads and daily closings.
package report_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/domain/reports"
	"goldshop/internal/infrastructure/storage/postgres"
)

const (
	closingsTable           = "daily_closings"
	sqlStateUniqueViolation = "23505"
)

var closingCols = postgres.ExtractDBColumns[reports.DailyClosing]()

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InvoiceBalances implements reports.Repository.
func (r *ReportRepo) InvoiceBalances(ctx context.Context, partyID *id.ID) ([]reports.InvoiceBalance, error) {
	q := r.builder.
		Select("id", "number", "party_id", "party_name", "is_walk_in", "walk_in_name", "balance_due").
		From("invoices").
		Where(squirrel.Eq{"is_deleted": false}).
		OrderBy("number")
	if partyID != nil {
		q = q.Where(squirrel.Eq{"party_id": *partyID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []reports.InvoiceBalance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("invoice balances: %w", err)
	}
	for i := range out {
		if err := precision.Normalize(&out[i]); err != nil {
			return nil, apperror.NewInternal(err)
		}
	}
	return out, nil
}

// PurchaseBalances implements reports.Repository.
func (r *ReportRepo) PurchaseBalances(ctx context.Context, partyID id.ID) ([]reports.PurchaseBalance, error) {
	sql, args, err := r.builder.
		Select("id", "number", "balance_due_money").
		From("purchases").
		Where(squirrel.Eq{"is_deleted": false, "party_id": partyID}).
		OrderBy("number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []reports.PurchaseBalance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("purchase balances: %w", err)
	}
	for i := range out {
		if err := precision.Normalize(&out[i]); err != nil {
			return nil, apperror.NewInternal(err)
		}
	}
	return out, nil
}

func (r *ReportRepo) getClosing(ctx context.Context, q squirrel.SelectBuilder) (*reports.DailyClosing, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c reports.DailyClosing
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get closing: %w", err)
	}
	c.Date = reports.Day(c.Date)
	return &c, nil
}

// GetClosing implements reports.Repository.
func (r *ReportRepo) GetClosing(ctx context.Context, day time.Time) (*reports.DailyClosing, error) {
	day = reports.Day(day)
	c, err := r.getClosing(ctx, r.builder.Select(closingCols...).From(closingsTable).
		Where(squirrel.Eq{"date": day, "is_deleted": false}))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.NewNotFound("daily_closing", day.Format(time.DateOnly))
	}
	return c, nil
}

// LastClosingBefore implements reports.Repository.
func (r *ReportRepo) LastClosingBefore(ctx context.Context, day time.Time) (*reports.DailyClosing, error) {
	return r.getClosing(ctx, r.builder.Select(closingCols...).From(closingsTable).
		Where(squirrel.Lt{"date": reports.Day(day)}).
		Where(squirrel.Eq{"is_deleted": false}).
		OrderBy("date DESC").
		Limit(1))
}

// CreateClosing implements reports.Repository. The unique date column
// rejects a second closing of the same day.
func (r *ReportRepo) CreateClosing(ctx context.Context, c *reports.DailyClosing) error {
	if err := precision.Normalize(c); err != nil {
		return apperror.NewInternal(err)
	}
	day := reports.Day(c.Date)
	data := postgres.FilterColumns(postgres.StructToMap(c), closingCols)
	data["date"] = day

	sql, args, err := r.builder.Insert(closingsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
			return apperror.NewDayClosed(day)
		}
		return fmt.Errorf("insert closing: %w", err)
	}
	return nil
}
