package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "goldshop/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockSequences simulates sys_sequences. Both statements pass the key
// and a value; reset assigns the value, advance adds it.
type mockSequences struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
	keys   []string
	err    error
}

func newMockSequences() *mockSequences {
	return &mockSequences{values: make(map[string]int64)}
}

func (m *mockSequences) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	key := args[0].(string)
	m.keys = append(m.keys, key)
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	v := args[1].(int64)
	if strings.Contains(sql, "current_val = $2") {
		m.values[key] = v
	} else {
		m.values[key] += v
	}
	return &mockRow{val: m.values[key]}
}

func provider(q Querier) QuerierProvider {
	return func(context.Context) Querier { return q }
}

var period = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestNext_Strict(t *testing.T) {
	tx, pool := newMockSequences(), newMockSequences()
	svc := New(provider(tx), pool)
	ctx := context.Background()
	cfg := corenumerator.ForPrefix(corenumerator.PrefixInvoice)

	num, err := svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00001", num)

	num, err = svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00002", num)

	assert.Equal(t, []string{"INV_2026", "INV_2026"}, tx.keys)
	assert.Zero(t, pool.calls, "strict numbers stay in the posting transaction")
}

func TestNext_CachedReservesThroughPool(t *testing.T) {
	tx, pool := newMockSequences(), newMockSequences()
	svc := New(provider(tx), pool)
	ctx := context.Background()
	cfg := corenumerator.ForPrefix(corenumerator.PrefixJobCard).Cached(10)

	num, err := svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "JC-2026-00001", num)
	assert.Equal(t, int64(10), pool.values["JC_2026"])

	num, err = svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "JC-2026-00002", num)
	assert.Equal(t, 1, pool.calls, "second number is served from memory")

	for i := 0; i < 8; i++ {
		_, err = svc.Next(ctx, cfg, period)
		require.NoError(t, err)
	}

	num, err = svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "JC-2026-00011", num)
	assert.Equal(t, int64(20), pool.values["JC_2026"])
	assert.Equal(t, 2, pool.calls)
	assert.Zero(t, tx.calls)
}

func TestReset_DropsReservation(t *testing.T) {
	tx, pool := newMockSequences(), newMockSequences()
	svc := New(provider(tx), pool)
	ctx := context.Background()
	cfg := corenumerator.ForPrefix(corenumerator.PrefixReturn).Cached(10)

	_, err := svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	require.Len(t, svc.ranges, 1)

	require.NoError(t, svc.Reset(ctx, cfg, period, 100))
	assert.Empty(t, svc.ranges)
	assert.Equal(t, int64(100), tx.values["RET_2026"])
}

func TestNext_Error(t *testing.T) {
	q := newMockSequences()
	q.err = errors.New("connection refused")
	svc := New(provider(q), q)

	_, err := svc.Next(context.Background(), corenumerator.ForPrefix("PUR"), period)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUR_2026")
}

func TestConfigKeyAndFormat(t *testing.T) {
	cfg := corenumerator.Config{Prefix: "PUR", Reset: corenumerator.ResetMonthly, PadWidth: 3}
	assert.Equal(t, "PUR_2026_03", cfg.Key(period))
	assert.Equal(t, "PUR-007", cfg.Format(period, 7))

	cfg.Reset = corenumerator.ResetNever
	assert.Equal(t, "PUR", cfg.Key(period))

	assert.Equal(t, "INV-2026-00042", corenumerator.ForPrefix("INV").Format(period, 42))
	assert.Equal(t, int64(50), corenumerator.ForPrefix("JC").Cached(0).ReservationSize())
}

func TestNilService(t *testing.T) {
	var svc *Service
	_, err := svc.Next(context.Background(), corenumerator.ForPrefix("X"), period)
	assert.Error(t, err)
}
