// Package domain defines the core interfaces and types for downpay.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Rule table operations
	SaveRuleTable(ctx context.Context, tenantID string, table *RuleTable) error
	GetRuleTable(ctx context.Context, tenantID string, tableID string) (*RuleTable, error)
	ListRuleTables(ctx context.Context, tenantID string) ([]*RuleTable, error)
	DeleteRuleTable(ctx context.Context, tenantID string, tableID string) error

	// Evaluation results
	SaveEvaluation(ctx context.Context, tenantID string, eval *Evaluation) error
	GetEvaluation(ctx context.Context, tenantID string, evalID string) (*Evaluation, error)
	ListEvaluationsByQuote(ctx context.Context, tenantID string, quoteID string) ([]*Evaluation, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `env:"DRIVER" envDefault:"sqlite"`

	// SQLite specific
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./downpay.db"`

	// PostgreSQL specific
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"downpay"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"`

	// Connection pool settings
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"`
}
