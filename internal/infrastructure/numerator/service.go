// Package numerator draws document numbers from the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "goldshop/internal/core/numerator"
)

// Querier is the subset of pgx used for sequence updates.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider resolves the querier for ctx: the posting transaction,
// or the pool outside one.
type QuerierProvider func(ctx context.Context) Querier

const (
	advanceSQL = `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val`

	resetSQL = `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val`
)

// reservation is a block of numbers (from, to] held in memory.
type reservation struct {
	last int64
	to   int64
}

// Service implements corenumerator.Generator.
//
// Strict numbers are drawn through the posting transaction so a rolled
// back posting returns its number. Cached ranges are reserved through the
// pool: a range must stay consumed even if the posting that triggered the
// reservation rolls back, or the next reservation would hand it out again.
type Service struct {
	tx      QuerierProvider
	reserve Querier

	mu     sync.Mutex
	ranges map[string]*reservation
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numbering service.
func New(tx QuerierProvider, reserve Querier) *Service {
	return &Service{
		tx:      tx,
		reserve: reserve,
		ranges:  make(map[string]*reservation),
	}
}

// Next implements corenumerator.Generator.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := cfg.Key(period)
	var (
		n   int64
		err error
	)
	if cfg.Strategy == corenumerator.StrategyCached {
		n, err = s.nextCached(ctx, key, cfg.ReservationSize())
	} else {
		n, err = advance(ctx, s.tx(ctx), key, 1)
	}
	if err != nil {
		return "", err
	}
	return cfg.Format(period, n), nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ranges[key]
	if !ok {
		r = &reservation{}
		s.ranges[key] = r
	}
	if r.last >= r.to {
		to, err := advance(ctx, s.reserve, key, size)
		if err != nil {
			return 0, err
		}
		r.last, r.to = to-size, to
	}
	r.last++
	return r.last, nil
}

func advance(ctx context.Context, q Querier, key string, step int64) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, advanceSQL, key, step).Scan(&n); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", key, err)
	}
	return n, nil
}

// Reset implements corenumerator.Generator and drops any cached range of
// the key.
func (s *Service) Reset(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := cfg.Key(period)

	s.mu.Lock()
	delete(s.ranges, key)
	s.mu.Unlock()

	var n int64
	if err := s.tx(ctx).QueryRow(ctx, resetSQL, key, value).Scan(&n); err != nil {
		return fmt.Errorf("reset sequence %s: %w", key, err)
	}
	return nil
}
