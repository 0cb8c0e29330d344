package app

import (
	"context"

	"github.com/redis/go-redis/v9"

	"goldshop/internal/config"
	"goldshop/internal/infrastructure/cache"
	"goldshop/internal/infrastructure/storage/postgres"
	"goldshop/pkg/logger"
)

// NewLogger builds the logger of one goldshop process.
func NewLogger(cfg config.LogConfig, process string) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Level,
		Development: cfg.Development,
		Process:     process,
	})
}

// OpenDatabase connects the pool described by cfg.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Pool, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.URL)
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ApplicationName != "" {
		poolCfg.ApplicationName = cfg.ApplicationName
	}
	return postgres.NewPool(ctx, poolCfg)
}

// OpenRedis connects Redis when it is configured. It returns a nil client
// when cfg has no address.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return cache.NewClient(ctx, cache.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Runtime is a connected PostgreSQL backend with its services.
type Runtime struct {
	*Services

	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	// Redis is nil when no address is configured.
	Redis *redis.Client
}

// Open connects the database and optional Redis and wires the services.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	pool, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Pool: pool, TxManager: postgres.NewTxManager(pool)}

	rt.Redis, err = OpenRedis(ctx, cfg.Redis)
	if err != nil {
		rt.Close()
		return nil, err
	}

	st, err := PostgresStorage(rt.TxManager, cfg.Worker.EventKeyTTL, nil)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if rt.Redis != nil {
		st.SettingsCache = cache.NewSettingsCache(rt.Redis, cfg.Redis.TTL)
	}

	rt.Services = NewServices(st, cfg.Shop.ConversionFactor)
	return rt, nil
}

// Close releases Redis and the pool.
func (rt *Runtime) Close() {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	rt.Pool.Close()
}
