package jobcard

import (
	"context"

	"goldshop/internal/core/id"
	"goldshop/internal/domain"
)

// Repository defines persistence of job cards.
type Repository interface {
	Create(ctx context.Context, doc *JobCard) error
	GetByID(ctx context.Context, docID id.ID) (*JobCard, error)
	Update(ctx context.Context, doc *JobCard) error
	List(ctx context.Context, filter domain.DocumentFilter) ([]*JobCard, error)
	GetForUpdate(ctx context.Context, docID id.ID) (*JobCard, error)
}
