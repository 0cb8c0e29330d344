package stock

import (
	"context"
	"fmt"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
	"goldshop/pkg/logger"
)

// Service provides stock register operations.
// Transactions are managed by the caller (posting engine).
type Service struct {
	repo Repository
}

// NewService creates a new stock register service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordMovements validates and stores movements from a document posting.
// It must run inside the caller's transaction.
func (s *Service) RecordMovements(ctx context.Context, movements []*Movement) (int, error) {
	if len(movements) == 0 {
		return 0, nil
	}

	actor := appctx.Actor(ctx)
	for i, m := range movements {
		if err := m.Validate(ctx); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return 0, appErr.WithDetail("lineNo", i+1)
			}
			return 0, err
		}
		if m.CreatedBy == "" {
			m.CreatedBy = actor
		}
	}

	inserted, err := s.repo.CreateMovements(ctx, movements)
	if err != nil {
		return 0, fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "recorded stock movements",
		"count", inserted,
		"recorder_type", movements[0].RecorderType,
	)
	return inserted, nil
}

// GetMovementsByRecorder returns the movements produced by a document.
func (s *Service) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]*Movement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

// GetHeaderTotals returns the running stock of an inventory header.
func (s *Service) GetHeaderTotals(ctx context.Context, headerID id.ID) (HeaderTotals, error) {
	return s.repo.GetHeaderTotals(ctx, headerID)
}
