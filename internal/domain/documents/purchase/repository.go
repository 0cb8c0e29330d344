package purchase

import (
	"context"

	"goldshop/internal/core/id"
	"goldshop/internal/domain"
)

// Repository defines persistence of purchases.
type Repository interface {
	Create(ctx context.Context, doc *Purchase) error
	GetByID(ctx context.Context, docID id.ID) (*Purchase, error)
	Update(ctx context.Context, doc *Purchase) error
	List(ctx context.Context, filter domain.DocumentFilter) ([]*Purchase, error)

	// GetForUpdate reads the purchase with a row lock held until commit.
	GetForUpdate(ctx context.Context, docID id.ID) (*Purchase, error)
}
