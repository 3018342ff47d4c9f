package config

import (
	"errors"
	"fleet-dispatch-service/internal/adapters/cache"
	"fleet-dispatch-service/internal/adapters/distance"
	"fmt"
	"slices"
	"strings"
	"time"
)

type ServerConfig struct {
	Addr                   string `json:"addr"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
	// Cold caches can make one run wait on many provider round trips.
	if c.WriteTimeoutSeconds == 0 {
		c.WriteTimeoutSeconds = 120
	}
	if c.ShutdownTimeoutSeconds == 0 {
		c.ShutdownTimeoutSeconds = 15
	}
}

func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("server: addr is required")
	}
	if c.ReadTimeoutSeconds < 0 || c.WriteTimeoutSeconds < 0 || c.ShutdownTimeoutSeconds < 0 {
		return errors.New("server: timeouts must not be negative")
	}
	return nil
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Provider kinds.
const (
	ProviderGoogle  = "google"
	ProviderOffline = "offline"
)

// ProviderConfig selects the travel time source. The offline provider
// answers every lookup with the analytic estimate.
type ProviderConfig struct {
	Kind           string                `json:"kind"`
	Matrix         distance.MatrixConfig `json:"matrix"`
	MaxElements    int                   `json:"max_elements"`
	Concurrency    int                   `json:"concurrency"`
	TimeoutSeconds int                   `json:"timeout_seconds"`
}

func (c *ProviderConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = ProviderOffline
	}
	c.Matrix.SetDefaults()
	if c.MaxElements == 0 {
		c.MaxElements = 25
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
}

func (c ProviderConfig) Validate() error {
	switch c.Kind {
	case ProviderOffline:
	case ProviderGoogle:
		if err := c.Matrix.Validate(); err != nil {
			return fmt.Errorf("provider: %w", err)
		}
	default:
		return fmt.Errorf("provider: unknown kind %q", c.Kind)
	}
	if c.MaxElements < 1 || c.Concurrency < 1 || c.TimeoutSeconds < 1 {
		return errors.New("provider: max_elements, concurrency and timeout_seconds must be positive")
	}
	return nil
}

// Cache backends.
const (
	CacheNone     = "none"
	CacheSqlite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// CacheConfig selects where distance samples survive restarts.
type CacheConfig struct {
	Backend     string `json:"backend"`
	SqlitePath  string `json:"sqlite_path"`
	PostgresURL string `json:"postgres_url"`
	RedisAddr   string `json:"redis_addr"`
	RedisDB     int    `json:"redis_db"`
	RedisKey    string `json:"redis_key"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = CacheNone
	}
	if c.SqlitePath == "" {
		c.SqlitePath = "data/dispatch.db"
	}
	if c.RedisKey == "" {
		c.RedisKey = cache.DefaultRedisKey
	}
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case CacheNone, CacheSqlite:
	case CachePostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return errors.New("cache: postgres_url is required for the postgres backend")
		}
	case CacheRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("cache: redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Backend)
	}
	return nil
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Level)) {
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	return nil
}

type MetricsConfig struct {
	// Enabled exposes GET /metrics.
	Enabled bool `json:"enabled"`
}
