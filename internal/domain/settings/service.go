package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/tx"
	"goldshop/internal/core/types"
	"goldshop/pkg/logger"
)

// Service reads and updates shop settings. Cache failures never fail a
// read; the repository stays authoritative.
type Service struct {
	repo      Repository
	cache     Cache
	txManager tx.Manager
	fallback  decimal.Decimal
}

// NewService creates the settings service. cache may be nil.
// fallback is used until settings are saved for the first time.
func NewService(repo Repository, cache Cache, txManager tx.Manager, fallback decimal.Decimal) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		txManager: txManager,
		fallback:  fallback,
	}
}

// Get returns the current settings.
func (s *Service) Get(ctx context.Context) (*ShopSettings, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			logger.Warn(ctx, "settings cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	current, err := s.repo.Get(ctx)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("get settings: %w", err)
		}
		current = Default(s.fallback)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, current); err != nil {
			logger.Warn(ctx, "settings cache write failed", "error", err)
		}
	}
	return current, nil
}

// ConversionFactor returns the factor currently in force.
func (s *Service) ConversionFactor(ctx context.Context) (decimal.Decimal, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return current.ConversionFactor, nil
}

// UpdateConversionFactor validates and stores a new factor.
// Existing purchases keep the factor they were valued with.
func (s *Service) UpdateConversionFactor(ctx context.Context, factor decimal.Decimal) (*ShopSettings, error) {
	if err := types.ValidateConversionFactor(factor); err != nil {
		return nil, err
	}

	updated := &ShopSettings{
		ConversionFactor: types.RoundFactor(factor),
		UpdatedAt:        time.Now().UTC(),
		UpdatedBy:        appctx.Actor(ctx),
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Save(ctx, updated)
	})
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "settings cache invalidation failed", "error", err)
		}
	}

	logger.Info(ctx, "conversion factor updated", "conversion_factor", updated.ConversionFactor.String())
	return updated, nil
}
