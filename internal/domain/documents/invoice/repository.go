package invoice

import (
	"context"

	"goldshop/internal/core/id"
	"goldshop/internal/domain"
)

// Repository defines persistence of invoices.
type Repository interface {
	Create(ctx context.Context, doc *Invoice) error
	GetByID(ctx context.Context, docID id.ID) (*Invoice, error)
	Update(ctx context.Context, doc *Invoice) error
	List(ctx context.Context, filter domain.DocumentFilter) ([]*Invoice, error)

	// GetForUpdate reads the invoice with a row lock held until commit.
	GetForUpdate(ctx context.Context, docID id.ID) (*Invoice, error)
}
