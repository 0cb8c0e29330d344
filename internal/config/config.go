// Package config loads process configuration from the environment.
//
// Priority, highest first: GOLDSHOP_ environment variables, a .env file in
// the working directory, built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"goldshop/internal/core/types"
)

// Config is the full process configuration.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Worker   WorkerConfig
	Shop     ShopConfig
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ApplicationName string
}

// RedisConfig holds the settings cache connection. An empty Addr disables
// the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string
	Development bool
}

// WorkerConfig holds background job intervals.
type WorkerConfig struct {
	OutboxInterval    time.Duration
	OutboxBatchSize   int
	CleanupInterval   time.Duration
	ReconcileInterval time.Duration
	EventKeyTTL       time.Duration
	OutboxRetention   time.Duration
}

// ShopConfig holds business defaults.
type ShopConfig struct {
	// ConversionFactor is used until settings are saved for the first time.
	ConversionFactor decimal.Decimal
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.application_name", "goldshop")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("worker.outbox_interval", 5*time.Second)
	v.SetDefault("worker.outbox_batch_size", 100)
	v.SetDefault("worker.cleanup_interval", time.Hour)
	v.SetDefault("worker.reconcile_interval", 15*time.Minute)
	v.SetDefault("worker.event_key_ttl", 7*24*time.Hour)
	v.SetDefault("worker.outbox_retention", 30*24*time.Hour)

	v.SetDefault("shop.conversion_factor", types.DefaultConversionFactor.String())
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("GOLDSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	factor, err := decimal.NewFromString(v.GetString("shop.conversion_factor"))
	if err != nil {
		return nil, fmt.Errorf("parse shop.conversion_factor: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MinConns:        v.GetInt32("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
			ApplicationName: v.GetString("database.application_name"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Worker: WorkerConfig{
			OutboxInterval:    v.GetDuration("worker.outbox_interval"),
			OutboxBatchSize:   v.GetInt("worker.outbox_batch_size"),
			CleanupInterval:   v.GetDuration("worker.cleanup_interval"),
			ReconcileInterval: v.GetDuration("worker.reconcile_interval"),
			EventKeyTTL:       v.GetDuration("worker.event_key_ttl"),
			OutboxRetention:   v.GetDuration("worker.outbox_retention"),
		},
		Shop: ShopConfig{
			ConversionFactor: factor,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and ranges.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("GOLDSHOP_DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max conns must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min conns must be within [0, %d], got %d", c.Database.MaxConns, c.Database.MinConns)
	}
	if err := types.ValidateConversionFactor(c.Shop.ConversionFactor); err != nil {
		return fmt.Errorf("shop conversion factor: %w", err)
	}
	if c.Worker.OutboxBatchSize <= 0 {
		return fmt.Errorf("worker outbox batch size must be positive, got %d", c.Worker.OutboxBatchSize)
	}
	for name, d := range map[string]time.Duration{
		"outbox_interval":    c.Worker.OutboxInterval,
		"cleanup_interval":   c.Worker.CleanupInterval,
		"reconcile_interval": c.Worker.ReconcileInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("worker %s must be positive, got %s", name, d)
		}
	}
	return nil
}
