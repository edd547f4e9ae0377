// Package worker evaluates submitted quotes asynchronously from the EventBus.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/downpay/internal/bus"
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/rules"
)

// Worker consumes quote submissions and table changes for a set of tenants.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	engine   *rules.Engine
	registry *rules.Registry

	evaluationTTL time.Duration

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs lists the tenants this node serves. Each gets a submission
	// consumer and a table change listener.
	TenantIDs []string

	// EvaluationTTL is how long finished evaluations stay cached.
	EvaluationTTL time.Duration
}

// NewWorker creates a new async worker. repo and cache may be nil.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *rules.Engine, registry *rules.Registry) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		repo:     repo,
		cache:    cache,
		engine:   engine,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the worker topics of every configured tenant.
// A tenant that fails to subscribe is logged and skipped.
func (w *Worker) Start(cfg Config) error {
	w.evaluationTTL = cfg.EvaluationTTL
	if w.evaluationTTL <= 0 {
		w.evaluationTTL = time.Hour
	}

	if len(cfg.TenantIDs) == 0 {
		slog.Info("no worker tenants configured, async evaluation disabled")
		return nil
	}

	started := 0
	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		started++
	}

	if started == 0 {
		return fmt.Errorf("no tenant worker could be started")
	}

	slog.Info("workers started",
		"tenant_count", started,
	)

	return nil
}

func (w *Worker) startTenantWorker(tenantID string) error {
	handlers := map[string]domain.MessageHandler{
		domain.TopicQuoteSubmitted: func(ctx context.Context, msg *domain.Message) error {
			return w.processSubmission(ctx, tenantID, msg)
		},
		domain.TopicTableChanged: func(ctx context.Context, msg *domain.Message) error {
			return w.applyTableChange(tenantID, msg)
		},
	}

	for _, topic := range []string{domain.TopicQuoteSubmitted, domain.TopicTableChanged} {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, topic, handlers[topic])
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.subscriptions = append(w.subscriptions, sub)
		w.mu.Unlock()
	}

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
	)

	return nil
}

// processSubmission evaluates one submitted quote. Evaluation failures are
// reported on TopicQuoteFailed rather than returned, so the bus only logs
// malformed messages.
func (w *Worker) processSubmission(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var sub domain.QuoteSubmission
	if err := bus.Decode(msg, &sub); err != nil {
		return err
	}

	traceID := sub.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	if sub.Quote == nil {
		w.publishFailure(ctx, tenantID, &sub, fmt.Errorf("quote is required"))
		return nil
	}

	slog.Debug("processing quote submission",
		"submission_id", sub.SubmissionID,
		"quote_id", sub.Quote.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	table, err := w.registry.Get(ctx, tenantID, sub.TableID)
	if err != nil {
		w.publishFailure(ctx, tenantID, &sub, err)
		return nil
	}

	result, err := w.engine.Evaluate(ctx, table, sub.Quote)
	if err != nil {
		w.publishFailure(ctx, tenantID, &sub, err)
		return nil
	}

	eval := rules.NewEvaluation(tenantID, table, sub.Quote, result, traceID, start)
	if sub.SubmissionID != "" {
		// Callers poll GET /evaluations/{submissionId}.
		eval.ID = sub.SubmissionID
	}

	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, tenantID, eval); err != nil {
			slog.Error("failed to save evaluation",
				"id", eval.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetEvaluation(ctx, tenantID, eval, w.evaluationTTL); err != nil {
			slog.Warn("failed to cache evaluation",
				"id", eval.ID,
				"error", err,
			)
		}
	}

	if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicQuoteEvaluated, eval); err != nil {
		slog.Error("failed to publish evaluation",
			"id", eval.ID,
			"error", err,
		)
	}

	slog.Info("quote evaluated",
		"id", eval.ID,
		"quote_id", eval.QuoteID,
		"tenant_id", tenantID,
		"table_id", eval.TableID,
		"down_payment", result.DownPayment,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) publishFailure(ctx context.Context, tenantID string, sub *domain.QuoteSubmission, cause error) {
	failure := domain.QuoteFailure{
		SubmissionID: sub.SubmissionID,
		TableID:      sub.TableID,
		Error:        cause.Error(),
	}
	if sub.Quote != nil {
		failure.QuoteID = sub.Quote.ID
	}

	slog.Warn("quote evaluation failed",
		"submission_id", sub.SubmissionID,
		"quote_id", failure.QuoteID,
		"tenant_id", tenantID,
		"error", cause,
	)

	if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicQuoteFailed, failure); err != nil {
		slog.Error("failed to publish quote failure",
			"submission_id", sub.SubmissionID,
			"error", err,
		)
	}
}

// applyTableChange drops the compiled table so the next evaluation loads
// the version another node just saved.
func (w *Worker) applyTableChange(tenantID string, msg *domain.Message) error {
	var change domain.TableChange
	if err := bus.Decode(msg, &change); err != nil {
		return err
	}

	w.registry.Invalidate(tenantID, change.TableID)

	slog.Debug("rule table invalidated",
		"tenant_id", tenantID,
		"table_id", change.TableID,
		"action", change.Action,
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
