package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/opensource-finance/downpay/internal/domain"
)

// TableSource loads rule tables for the registry.
// domain.Repository satisfies it.
type TableSource interface {
	GetRuleTable(ctx context.Context, tenantID string, tableID string) (*domain.RuleTable, error)
	ListRuleTables(ctx context.Context, tenantID string) ([]*domain.RuleTable, error)
}

// Registry caches compiled rule tables per tenant.
// Compiled tables are immutable, so a table handed to an evaluation stays
// valid even if the registry reloads it concurrently.
type Registry struct {
	mu     sync.RWMutex
	engine *Engine
	source TableSource
	tables map[string]*CompiledTable
}

// NewRegistry creates a registry. source may be nil, in which case only
// tables added with Load are available.
func NewRegistry(engine *Engine, source TableSource) *Registry {
	return &Registry{
		engine: engine,
		source: source,
		tables: make(map[string]*CompiledTable),
	}
}

// Get returns the compiled table, loading it from the source on a miss.
func (r *Registry) Get(ctx context.Context, tenantID, tableID string) (*CompiledTable, error) {
	r.mu.RLock()
	table, ok := r.tables[registryKey(tenantID, tableID)]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	if r.source == nil {
		return nil, fmt.Errorf("rule table %s not loaded", tableID)
	}

	cfg, err := r.source.GetRuleTable(ctx, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	return r.Load(tenantID, cfg)
}

// Load compiles a table and stores it, replacing any previous version.
func (r *Registry) Load(tenantID string, cfg *domain.RuleTable) (*CompiledTable, error) {
	compiled, err := r.engine.Compile(cfg)
	if err != nil {
		return nil, err
	}

	if compiled.Fallback() == nil {
		slog.Warn("rule table has no unconditional rule",
			"tenant_id", tenantID,
			"table_id", cfg.ID,
		)
	}

	r.mu.Lock()
	r.tables[registryKey(tenantID, cfg.ID)] = compiled
	r.mu.Unlock()

	return compiled, nil
}

// Invalidate drops a table so the next Get reloads it.
func (r *Registry) Invalidate(tenantID, tableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, registryKey(tenantID, tableID))
}

// Reload recompiles every enabled table of a tenant from the source.
// On error the previously loaded tables are kept.
func (r *Registry) Reload(ctx context.Context, tenantID string) (int, error) {
	if r.source == nil {
		return 0, fmt.Errorf("no rule table source configured")
	}

	cfgs, err := r.source.ListRuleTables(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	fresh := make(map[string]*CompiledTable, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := r.engine.Compile(cfg)
		if err != nil {
			return 0, err
		}
		fresh[registryKey(tenantID, cfg.ID)] = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := tenantID + "/"
	for key := range r.tables {
		if strings.HasPrefix(key, prefix) {
			delete(r.tables, key)
		}
	}
	for key, table := range fresh {
		r.tables[key] = table
	}

	return len(fresh), nil
}

// Count returns the number of compiled tables held.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

func registryKey(tenantID, tableID string) string {
	return tenantID + "/" + tableID
}
