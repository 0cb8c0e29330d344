// Package settings_repo stores the single shop settings row.
package settings_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"goldshop/internal/core/apperror"
	"goldshop/internal/domain/settings"
	"goldshop/internal/infrastructure/storage/postgres"
)

// SettingsRepo implements settings.Repository.
type SettingsRepo struct {
	txm *postgres.TxManager
}

var _ settings.Repository = (*SettingsRepo)(nil)

// NewSettingsRepo creates a new settings repository.
func NewSettingsRepo(txm *postgres.TxManager) *SettingsRepo {
	return &SettingsRepo{txm: txm}
}

// Get implements settings.Repository.
func (r *SettingsRepo) Get(ctx context.Context) (*settings.ShopSettings, error) {
	var s settings.ShopSettings
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, `
		SELECT conversion_factor, updated_at, updated_by FROM shop_settings WHERE id = 1
	`)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("shop_settings", "default")
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

// Save upserts the settings row.
func (r *SettingsRepo) Save(ctx context.Context, s *settings.ShopSettings) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO shop_settings (id, conversion_factor, updated_at, updated_by)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			conversion_factor = EXCLUDED.conversion_factor,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`, s.ConversionFactor, s.UpdatedAt, s.UpdatedBy)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
