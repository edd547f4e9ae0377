// Package rules evaluates down-payment rule tables against quotes.
//
// A table's rules are compiled once into an immutable CompiledTable. Each
// evaluation then matches rules against the quote (quote-scoped criteria)
// or its policies (policy-scoped criteria), prices every policy with its
// winning rule, and folds installment bounds across all matched rules.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("downpay-rules")

// Engine evaluates quotes against compiled rule tables.
// It holds no per-evaluation state and is safe for concurrent use.
type Engine struct {
	comparator *comparator
	tieBreak   domain.TieBreak
	defaults   domain.BoundDefaults
	maxWorkers int
	metrics    *metrics.Metrics
}

// NewEngine creates a rule engine. m may be nil.
func NewEngine(cfg domain.EngineConfig, m *metrics.Metrics) (*Engine, error) {
	tieBreak := cfg.TieBreak
	switch tieBreak {
	case "":
		tieBreak = domain.TieBreakFirstMatch
	case domain.TieBreakFirstMatch, domain.TieBreakMostConservative:
	default:
		return nil, fmt.Errorf("unsupported tie break: %s", tieBreak)
	}

	defaults := cfg.Defaults
	if defaults == (domain.BoundDefaults{}) {
		defaults = domain.DefaultBoundDefaults()
	}
	defaults = defaults.Complete(domain.DefaultBoundDefaults())
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bound defaults: %w", err)
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	cmp, err := newComparator()
	if err != nil {
		return nil, err
	}

	return &Engine{
		comparator: cmp,
		tieBreak:   tieBreak,
		defaults:   defaults,
		maxWorkers: maxWorkers,
		metrics:    m,
	}, nil
}

// TieBreak returns the configured equal-priority tie break.
func (e *Engine) TieBreak() domain.TieBreak {
	return e.tieBreak
}

// Evaluate computes the down payment and installment bounds for a quote.
// The quote and table are read-only; either the full result is returned or
// an error, never a partial result.
func (e *Engine) Evaluate(ctx context.Context, table *CompiledTable, quote *domain.Quote) (*domain.QuoteResult, error) {
	start := time.Now()

	_, span := tracer.Start(ctx, "rules.Evaluate")
	defer span.End()

	result, err := e.evaluate(table, quote)

	e.metrics.ObserveEvaluation(outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("quote.id", quote.ID),
		attribute.String("table.id", table.ID),
		attribute.Int("quote.policies", len(quote.Policies)),
		attribute.Int64("quote.down_payment", result.DownPayment),
	)
	return result, nil
}

func (e *Engine) evaluate(table *CompiledTable, quote *domain.Quote) (*domain.QuoteResult, error) {
	if table == nil {
		return nil, fmt.Errorf("compiled rule table is required")
	}
	if quote == nil || len(quote.Policies) == 0 {
		return nil, ErrEmptyQuote
	}

	matches, err := table.match(quote)
	if err != nil {
		return nil, err
	}

	money, err := resolveMonetary(table, quote, matches, e.tieBreak)
	if err != nil {
		return nil, err
	}

	b := resolveBounds(table, matches, money.fallbackUsed, e.defaults)

	fallbackCount := 0
	for _, c := range money.contributions {
		if c.Fallback {
			fallbackCount++
		}
	}
	e.metrics.AddFallbackPolicies(fallbackCount)

	result := &domain.QuoteResult{
		DownPayment:          money.downPayment,
		MinDownPayment:       money.minDownPayment,
		InstallmentCount:     b.installmentCountDefault,
		InstallmentCountMin:  b.installmentCountMin,
		InstallmentCountMax:  b.installmentCountMax,
		DaysToFirstDueDate:   b.daysToFirstDueDate,
		MonthsToFirstDueDate: b.monthsToFirstDueDate,
		OverrideMep:          b.overrideMep,
		Policies:             money.contributions,
		MatchedRules:         b.rules,
	}

	if startDate := quote.StartDate(); !startDate.IsZero() {
		due := startDate.AddDate(0, b.monthsToFirstDueDate, b.daysToFirstDueDate)
		result.MaxFirstDueDate = &due
	}

	return result, nil
}

// EvaluateBatch evaluates independent quotes concurrently against one table.
// Results are returned in input order; the first failure cancels the batch.
func (e *Engine) EvaluateBatch(ctx context.Context, table *CompiledTable, quotes []*domain.Quote) ([]*domain.QuoteResult, error) {
	ctx, span := tracer.Start(ctx, "rules.EvaluateBatch", trace.WithAttributes(
		attribute.Int("batch.size", len(quotes)),
	))
	defer span.End()

	results := make([]*domain.QuoteResult, len(quotes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)

	for i, quote := range quotes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := e.Evaluate(ctx, table, quote)
			if err != nil {
				return fmt.Errorf("quote %d (%s): %w", i, quoteLabel(quote), err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}

func quoteLabel(q *domain.Quote) string {
	if q == nil || q.ID == "" {
		return "unnamed"
	}
	return q.ID
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnresolvedPolicy):
		return "unresolved_policy"
	case errors.Is(err, ErrMissingFact):
		return "missing_fact"
	case errors.Is(err, ErrEmptyQuote):
		return "empty_quote"
	default:
		return "error"
	}
}
