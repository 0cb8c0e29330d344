package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/documents/returns"
	"goldshop/internal/infrastructure/storage/postgres"
)

const returnsTable = "returns"

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	*BaseDocumentRepo[returns.Return]
}

var _ returns.Repository = (*ReturnRepo)(nil)

// NewReturnRepo creates a new return repository.
func NewReturnRepo(txm *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[returns.Return](txm, returnsTable, returns.EntityType),
	}
}

// SumFinalized implements returns.Repository.
func (r *ReturnRepo) SumFinalized(ctx context.Context, refType string, refID id.ID) (returns.Totals, error) {
	sql, args, err := r.Builder().
		Select("COALESCE(SUM(total_amount), 0)", "COALESCE(SUM(total_weight_grams), 0)", "COUNT(*)").
		From(returnsTable).
		Where(squirrel.Eq{
			"reference_type": refType,
			"reference_id":   refID,
			"status":         returns.StatusFinalized,
			"is_deleted":     false,
		}).
		ToSql()
	if err != nil {
		return returns.Totals{}, fmt.Errorf("build query: %w", err)
	}

	var (
		totals         returns.Totals
		amount, weight decimal.Decimal
	)
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&amount, &weight, &totals.Count); err != nil {
		return returns.Totals{}, fmt.Errorf("sum returns: %w", err)
	}
	totals.Amount = types.RoundMoney(amount)
	totals.Weight = types.RoundWeight(weight)
	return totals, nil
}
