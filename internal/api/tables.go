package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/repository"
)

// CreateTableRequest is the request body for POST /tables.
type CreateTableRequest struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Version     string                   `json:"version,omitempty"`
	Rules       []domain.DownPaymentRule `json:"rules"`
	Enabled     *bool                    `json:"enabled,omitempty"`
}

// ListTables returns the latest enabled version of each rule table.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	tables, err := h.repo.ListRuleTables(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rule tables", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rule tables")
		return
	}
	if tables == nil {
		tables = []*domain.RuleTable{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tables": tables,
		"count":  len(tables),
	})
}

// GetTable retrieves a rule table by ID.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	tableID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	table, err := h.repo.GetRuleTable(ctx, tenantID, tableID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule table not found")
			return
		}
		slog.Error("failed to get rule table", "id", tableID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get rule table")
		return
	}

	writeJSON(w, http.StatusOK, table)
}

// CreateTable validates a rule table by compiling it, saves it, and makes
// it available for evaluation immediately.
func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}
	if req.ID == domain.InlineTableID {
		writeError(w, http.StatusBadRequest, "table id is reserved")
		return
	}
	if len(req.Rules) == 0 {
		writeError(w, http.StatusBadRequest, "at least one rule is required")
		return
	}

	table := &domain.RuleTable{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		Rules:       req.Rules,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if table.Version == "" {
		table.Version = "1"
	}

	compiled, err := h.engine.Compile(table)
	if err != nil {
		writeError(w, statusFor(err), "invalid rule table: "+err.Error())
		return
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}
	if err := h.repo.SaveRuleTable(ctx, tenantID, table); err != nil {
		slog.Error("failed to save rule table", "id", table.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule table")
		return
	}

	// Drop the cached compile; the next Get picks the latest enabled version.
	h.registry.Invalidate(tenantID, table.ID)
	h.publish(ctx, tenantID, domain.TopicTableChanged, domain.TableChange{TableID: table.ID, Action: "saved"})

	slog.Info("rule table saved",
		"tenant_id", tenantID,
		"id", table.ID,
		"version", table.Version,
		"rules", len(table.Rules),
		"fallback", compiled.Fallback() != nil,
	)
	writeJSON(w, http.StatusCreated, map[string]any{
		"table":    table,
		"fallback": compiled.Fallback() != nil,
	})
}

// DeleteTable soft-deletes every version of a rule table.
func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	tableID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	if err := h.repo.DeleteRuleTable(ctx, tenantID, tableID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule table not found")
			return
		}
		slog.Error("failed to delete rule table", "id", tableID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule table")
		return
	}

	h.registry.Invalidate(tenantID, tableID)
	h.publish(ctx, tenantID, domain.TopicTableChanged, domain.TableChange{TableID: tableID, Action: "deleted"})

	slog.Info("rule table deleted", "tenant_id", tenantID, "id", tableID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rule table deleted",
	})
}

// ReloadTables recompiles every enabled table of the tenant from the database.
func (h *Handler) ReloadTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	count, err := h.registry.Reload(ctx, tenantID)
	if err != nil {
		h.writeEngineError(w, "failed to reload rule tables", err)
		return
	}

	slog.Info("rule tables reloaded", "tenant_id", tenantID, "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rule tables reloaded successfully",
		"count":   count,
	})
}
