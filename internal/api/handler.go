package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/downpay/internal/bus"
	"github.com/opensource-finance/downpay/internal/cache"
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/repository"
	"github.com/opensource-finance/downpay/internal/rules"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 500
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo          domain.Repository
	cache         domain.Cache
	bus           domain.EventBus
	engine        *rules.Engine
	registry      *rules.Registry
	evaluationTTL time.Duration
	version       string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, registry *rules.Registry, evaluationTTL time.Duration, version string) *Handler {
	if evaluationTTL <= 0 {
		evaluationTTL = time.Hour
	}
	return &Handler{
		repo:          repo,
		cache:         cache,
		bus:           bus,
		engine:        engine,
		registry:      registry,
		evaluationTTL: evaluationTTL,
		version:       version,
	}
}

// EvaluateRequest is the request body for POST /quotes/evaluate.
// Exactly one of TableID or Rules selects the rule table.
type EvaluateRequest struct {
	Quote   *domain.Quote            `json:"quote"`
	TableID string                   `json:"tableId,omitempty"`
	Rules   []domain.DownPaymentRule `json:"rules,omitempty"`
}

// SubmitRequest is the request body for POST /quotes/submit.
// Async evaluation always uses a stored rule table.
type SubmitRequest struct {
	Quote   *domain.Quote `json:"quote"`
	TableID string        `json:"tableId"`
}

// BatchEvaluateRequest is the request body for POST /quotes/evaluate/batch.
type BatchEvaluateRequest struct {
	Quotes  []*domain.Quote          `json:"quotes"`
	TableID string                   `json:"tableId,omitempty"`
	Rules   []domain.DownPaymentRule `json:"rules,omitempty"`
}

// Evaluate handles POST /quotes/evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Quote == nil {
		writeError(w, http.StatusBadRequest, "quote is required")
		return
	}
	if msg := tableSelectorError(req.TableID, req.Rules); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	table, err := h.resolveTable(ctx, tenantID, req.TableID, req.Rules)
	if err != nil {
		h.writeEngineError(w, "failed to resolve rule table", err)
		return
	}

	result, err := h.engine.Evaluate(ctx, table, req.Quote)
	if err != nil {
		h.writeEngineError(w, "quote evaluation failed", err)
		return
	}

	eval := rules.NewEvaluation(tenantID, table, req.Quote, result, GetTraceID(ctx), start)
	h.persist(ctx, tenantID, eval)

	writeJSON(w, http.StatusOK, eval)
}

// EvaluateBatch handles POST /quotes/evaluate/batch requests.
// Either every quote is evaluated or none is persisted.
func (h *Handler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req BatchEvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.Quotes) == 0 {
		writeError(w, http.StatusBadRequest, "quotes are required")
		return
	}
	if len(req.Quotes) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many quotes in batch")
		return
	}
	if msg := tableSelectorError(req.TableID, req.Rules); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	table, err := h.resolveTable(ctx, tenantID, req.TableID, req.Rules)
	if err != nil {
		h.writeEngineError(w, "failed to resolve rule table", err)
		return
	}

	results, err := h.engine.EvaluateBatch(ctx, table, req.Quotes)
	if err != nil {
		h.writeEngineError(w, "batch evaluation failed", err)
		return
	}

	evals := make([]*domain.Evaluation, len(results))
	for i, result := range results {
		evals[i] = rules.NewEvaluation(tenantID, table, req.Quotes[i], result, GetTraceID(ctx), start)
		h.persist(ctx, tenantID, evals[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"evaluations": evals,
		"count":       len(evals),
	})
}

// Submit handles POST /quotes/submit requests. The quote is queued for a
// worker and the response carries the ID its evaluation will be stored under.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Quote == nil || len(req.Quote.Policies) == 0 {
		writeError(w, http.StatusBadRequest, "quote with at least one policy is required")
		return
	}
	if req.TableID == "" {
		writeError(w, http.StatusBadRequest, "tableId is required")
		return
	}
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	submission := domain.QuoteSubmission{
		SubmissionID: uuid.New().String(),
		TableID:      req.TableID,
		TraceID:      GetTraceID(ctx),
		Quote:        req.Quote,
	}
	if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicQuoteSubmitted, submission); err != nil {
		slog.Error("failed to submit quote", "quote_id", req.Quote.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to submit quote")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"submissionId": submission.SubmissionID,
		"status":       "accepted",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	resp := map[string]any{
		"status":  status,
		"version": h.version,
	}
	if h.registry != nil {
		resp["tables"] = h.registry.Count()
	}
	if sc, ok := h.cache.(interface{ Stats() cache.Stats }); ok {
		resp["cache"] = sc.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetEvaluation retrieves an evaluation by ID, checking the cache first.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeError(w, http.StatusBadRequest, "evaluation id is required")
		return
	}

	if h.cache != nil {
		eval, err := h.cache.GetEvaluation(ctx, tenantID, evalID)
		if err != nil {
			slog.Warn("evaluation cache read failed", "id", evalID, "error", err)
		}
		if eval != nil {
			writeJSON(w, http.StatusOK, eval)
			return
		}
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, tenantID, evalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "evaluation not found")
			return
		}
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get evaluation")
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// ListQuoteEvaluations returns every stored evaluation of a quote, newest first.
func (h *Handler) ListQuoteEvaluations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	quoteID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	evals, err := h.repo.ListEvaluationsByQuote(ctx, tenantID, quoteID)
	if err != nil {
		slog.Error("failed to list evaluations", "quote_id", quoteID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}
	if evals == nil {
		evals = []*domain.Evaluation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"evaluations": evals,
		"count":       len(evals),
	})
}

func tableSelectorError(tableID string, inline []domain.DownPaymentRule) string {
	switch {
	case tableID == "" && len(inline) == 0:
		return "tableId or rules is required"
	case tableID != "" && len(inline) > 0:
		return "tableId and rules are mutually exclusive"
	}
	return ""
}

// resolveTable returns the registry's compiled table, or compiles the inline
// rules for this request only.
func (h *Handler) resolveTable(ctx context.Context, tenantID, tableID string, inline []domain.DownPaymentRule) (*rules.CompiledTable, error) {
	if len(inline) > 0 {
		return h.engine.Compile(&domain.RuleTable{
			ID:       domain.InlineTableID,
			TenantID: tenantID,
			Rules:    inline,
			Enabled:  true,
		})
	}
	return h.registry.Get(ctx, tenantID, tableID)
}

// persist stores, caches and announces an evaluation. Failures are logged;
// the computed result is still returned to the caller.
func (h *Handler) persist(ctx context.Context, tenantID string, eval *domain.Evaluation) {
	if h.repo != nil {
		if err := h.repo.SaveEvaluation(ctx, tenantID, eval); err != nil {
			slog.Error("failed to save evaluation", "id", eval.ID, "error", err)
		}
	}
	if h.cache != nil {
		if err := h.cache.SetEvaluation(ctx, tenantID, eval, h.evaluationTTL); err != nil {
			slog.Warn("failed to cache evaluation", "id", eval.ID, "error", err)
		}
	}
	h.publish(ctx, tenantID, domain.TopicQuoteEvaluated, eval)
}

func (h *Handler) publish(ctx context.Context, tenantID, topic string, v any) {
	if h.bus == nil {
		return
	}
	if err := bus.PublishJSON(ctx, h.bus, tenantID, topic, v); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// statusFor maps engine and repository errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rules.ErrEmptyQuote):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrUnknownCriteria),
		errors.Is(err, rules.ErrUnknownComparison),
		errors.Is(err, rules.ErrUnknownPriority),
		errors.Is(err, rules.ErrTypeMismatch),
		errors.Is(err, rules.ErrMixedScope),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, rules.ErrMissingFact),
		errors.Is(err, rules.ErrUnresolvedPolicy):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
