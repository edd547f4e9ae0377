// Package config loads downpay configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/opensource-finance/downpay/internal/domain"
)

// Prefix is prepended to every environment variable downpay reads.
const Prefix = "DOWNPAY_"

// Load reads configuration from the process environment.
func Load() (*domain.Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment. Keys carry the DOWNPAY_ prefix.
func LoadFrom(environment map[string]string) (*domain.Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environment})
}

func parse(opts env.Options) (*domain.Config, error) {
	var cfg domain.Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the environment parser cannot.
func Validate(cfg *domain.Config) error {
	var errs []error

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Repository.Driver))
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported CACHE_TYPE %q", cfg.Cache.Type))
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		errs = append(errs, fmt.Errorf("unsupported BUS_TYPE %q", cfg.EventBus.Type))
	}

	for _, tenantID := range cfg.EventBus.WorkerTenants {
		if err := domain.ValidateTenantID(tenantID); err != nil {
			errs = append(errs, fmt.Errorf("BUS_WORKER_TENANTS entry %q: %w", tenantID, err))
		}
	}

	switch cfg.Engine.TieBreak {
	case domain.TieBreakFirstMatch, domain.TieBreakMostConservative:
	default:
		errs = append(errs, fmt.Errorf("unsupported ENGINE_TIE_BREAK %q", cfg.Engine.TieBreak))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", cfg.Server.Port))
	}

	if err := cfg.Engine.Defaults.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger from logging settings.
func NewLogger(cfg domain.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
