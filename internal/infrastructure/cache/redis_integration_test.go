//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"goldshop/internal/core/id"
	"goldshop/internal/domain/settings"
	"goldshop/internal/infrastructure/storage/postgres"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, RedisConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSettingsCache_RoundTrip(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c := NewSettingsCache(client, time.Minute).WithKey("test:settings")

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := &settings.ShopSettings{
		ConversionFactor: decimal.RequireFromString("0.915"),
		UpdatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedBy:        "owner",
	}
	require.NoError(t, c.Set(ctx, want))

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, want.ConversionFactor.Equal(got.ConversionFactor))
	assert.Equal(t, "owner", got.UpdatedBy)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsCache_CorruptEntryIsMiss(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c := NewSettingsCache(client, 0).WithKey("test:corrupt")

	require.NoError(t, client.Set(ctx, "test:corrupt", "{not json", 0).Err())
	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStreamPublisher_Handle(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	p := NewStreamPublisher(client, "test:events", 1000)

	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "purchase",
		AggregateID:   id.New(),
		EventType:     "purchase.create",
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, p.Handle(ctx, msg))

	entries, err := client.XRange(ctx, "test:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "purchase.create", entries[0].Values["event_type"])
	assert.Equal(t, msg.ID.String(), entries[0].Values["message_id"])
}
