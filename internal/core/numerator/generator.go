package numerator

import (
	"context"
	"time"
)

// Generator hands out document numbers. The PostgreSQL implementation
// lives in infrastructure/numerator.
type Generator interface {
	// Next returns the next number of cfg for the document dated period.
	Next(ctx context.Context, cfg Config, period time.Time) (string, error)

	// Reset sets the counter of cfg for period to value, so the next
	// number is value+1. Used when importing books kept elsewhere.
	Reset(ctx context.Context, cfg Config, period time.Time, value int64) error
}
