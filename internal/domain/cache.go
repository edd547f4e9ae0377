package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU + Redis.
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetEvaluation retrieves a cached evaluation.
	GetEvaluation(ctx context.Context, tenantID string, evalID string) (*Evaluation, error)

	// SetEvaluation caches an evaluation for fast retrieval.
	SetEvaluation(ctx context.Context, tenantID string, eval *Evaluation, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `env:"TYPE" envDefault:"memory"`

	// Local LRU cache settings
	LocalMaxSize int           `env:"LOCAL_MAX_SIZE" envDefault:"10000"`
	LocalTTL     time.Duration `env:"LOCAL_TTL" envDefault:"5m"`

	// Redis settings
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	// EnableTwoPhase checks local first, then Redis
	EnableTwoPhase bool `env:"TWO_PHASE" envDefault:"false"`

	// EvaluationTTL is how long computed evaluations stay cached.
	EvaluationTTL time.Duration `env:"EVALUATION_TTL" envDefault:"1h"`
}
