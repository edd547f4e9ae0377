// Downpay - Down payment and installment rules for insurance quotes.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/downpay/internal/api"
	"github.com/opensource-finance/downpay/internal/bus"
	"github.com/opensource-finance/downpay/internal/cache"
	"github.com/opensource-finance/downpay/internal/config"
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/metrics"
	"github.com/opensource-finance/downpay/internal/repository"
	"github.com/opensource-finance/downpay/internal/rules"
	"github.com/opensource-finance/downpay/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(config.NewLogger(cfg.Logging, os.Stdout))

	slog.Info("starting downpay",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tie_break", cfg.Engine.TieBreak,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	m := metrics.New()

	// Initialize Rule Engine
	engine, err := rules.NewEngine(cfg.Engine, m)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	registry := rules.NewRegistry(engine, repo)

	// Tables of the worker tenants are compiled up front; everything else
	// compiles on first use.
	for _, tenantID := range cfg.EventBus.WorkerTenants {
		count, err := registry.Reload(ctx, tenantID)
		if err != nil {
			slog.Error("failed to load rule tables", "tenant_id", tenantID, "error", err)
			os.Exit(1)
		}
		slog.Info("rule tables loaded", "tenant_id", tenantID, "count", count)
	}

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, repo, cacheImpl, engine, registry)
	workerCfg := worker.Config{
		TenantIDs:     cfg.EventBus.WorkerTenants,
		EvaluationTTL: cfg.Cache.EvaluationTTL,
	}
	if err := asyncWorker.Start(workerCfg); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, registry, m, cfg.Cache.EvaluationTTL, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("downpay is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("downpay shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  DOWNPAY")
	fmt.Println("  Down payment rules for insurance quotes")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Bus:      %s\n", cfg.EventBus.Type)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /quotes/evaluate          - Evaluate a quote")
	fmt.Println("    POST   /quotes/evaluate/batch    - Evaluate many quotes against one table")
	fmt.Println("    POST   /quotes/submit            - Queue a quote for async evaluation")
	fmt.Println("    GET    /quotes/{id}/evaluations  - List evaluations of a quote")
	fmt.Println("    GET    /evaluations/{id}         - Get evaluation by ID")
	fmt.Println("    GET    /tables                   - List rule tables")
	fmt.Println("    GET    /tables/{id}              - Get a rule table")
	fmt.Println("    POST   /tables                   - Create or replace a rule table")
	fmt.Println("    DELETE /tables/{id}              - Delete a rule table")
	fmt.Println("    POST   /tables/reload            - Hot-reload rule tables from database")
	fmt.Println("    GET    /health                   - Health check")
	fmt.Println("    GET    /metrics                  - Prometheus metrics")
	fmt.Println()
}
