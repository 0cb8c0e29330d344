package memstore

import (
	"context"

	"goldshop/internal/core/apperror"
	"goldshop/internal/domain/settings"
)

type settingsRepo struct{ s *Store }

func (r *settingsRepo) Get(ctx context.Context) (*settings.ShopSettings, error) {
	var cur *settings.ShopSettings
	r.s.read(func(st *state) { cur = st.settings })
	if cur == nil {
		return nil, apperror.NewNotFound("shop_settings", "default")
	}
	out := *cur
	return &out, nil
}

func (r *settingsRepo) Save(ctx context.Context, s *settings.ShopSettings) error {
	saved := *s
	r.s.write(func(st *state) { st.settings = &saved })
	return nil
}
