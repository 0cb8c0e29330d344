package returns

import (
	"context"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/id"
	"goldshop/internal/domain"
)

// Repository defines persistence of returns.
type Repository interface {
	Create(ctx context.Context, doc *Return) error
	GetByID(ctx context.Context, docID id.ID) (*Return, error)
	Update(ctx context.Context, doc *Return) error
	List(ctx context.Context, filter domain.DocumentFilter) ([]*Return, error)
	GetForUpdate(ctx context.Context, docID id.ID) (*Return, error)

	// SumFinalized totals the non-deleted finalized returns against a
	// reference document. Drafts are not counted.
	SumFinalized(ctx context.Context, refType string, refID id.ID) (Totals, error)
}

// Totals are the returned amount and weight against one reference.
type Totals struct {
	Amount decimal.Decimal `json:"total_amount" precision:"money"`
	Weight decimal.Decimal `json:"total_weight_grams" precision:"weight"`
	Count  int             `json:"count"`
}
