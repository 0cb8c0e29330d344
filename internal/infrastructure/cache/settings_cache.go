// Package cache provides Redis-backed infrastructure: the shop settings
// read-through cache and the outbox stream publisher.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goldshop/internal/core/precision"
	"goldshop/internal/domain/settings"
)

const defaultSettingsKey = "goldshop:settings"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// SettingsCache implements settings.Cache on a single Redis key holding the
// JSON encoded settings.
type SettingsCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ settings.Cache = (*SettingsCache)(nil)

// NewSettingsCache creates a settings cache. A zero ttl keeps the entry
// until it is invalidated.
func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	return &SettingsCache{client: client, key: defaultSettingsKey, ttl: ttl}
}

// WithKey returns a copy of the cache using key.
func (c *SettingsCache) WithKey(key string) *SettingsCache {
	cp := *c
	cp.key = key
	return &cp
}

// Get implements settings.Cache.
func (c *SettingsCache) Get(ctx context.Context) (*settings.ShopSettings, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get settings: %w", err)
	}

	var s settings.ShopSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, false, nil
	}
	if err := precision.Normalize(&s); err != nil {
		return nil, false, fmt.Errorf("normalize cached settings: %w", err)
	}
	return &s, true, nil
}

// Set implements settings.Cache.
func (c *SettingsCache) Set(ctx context.Context, s *settings.ShopSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}

// Invalidate implements settings.Cache.
func (c *SettingsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate settings: %w", err)
	}
	return nil
}
