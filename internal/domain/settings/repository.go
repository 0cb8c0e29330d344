package settings

import "context"

// Repository persists the settings row.
type Repository interface {
	// Get returns the stored settings or an apperror not-found error.
	Get(ctx context.Context) (*ShopSettings, error)
	Save(ctx context.Context, s *ShopSettings) error
}

// Cache is a read-through cache in front of Repository.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context) (s *ShopSettings, ok bool, err error)
	Set(ctx context.Context, s *ShopSettings) error
	Invalidate(ctx context.Context) error
}
