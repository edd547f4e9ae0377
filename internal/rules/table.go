package rules

import (
	"fmt"

	"github.com/opensource-finance/downpay/internal/domain"
)

// CompiledRule is a validated rule with its requirements bound to programs.
type CompiledRule struct {
	Rule  domain.DownPaymentRule
	Index int
	Scope Scope

	rank         int
	requirements []*compiledRequirement
}

// Unconditional reports whether the rule has no requirements.
func (r *CompiledRule) Unconditional() bool {
	return len(r.requirements) == 0
}

// CompiledTable is an immutable, validated snapshot of a rule table.
// It is safe for concurrent evaluations.
type CompiledTable struct {
	ID      string
	Version string

	rules    []*CompiledRule
	fallback *CompiledRule
}

// Rules returns the compiled rules in table order.
func (t *CompiledTable) Rules() []*CompiledRule {
	out := make([]*CompiledRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Fallback returns the unconditional rule used when nothing else matches,
// or nil when the table has none.
func (t *CompiledTable) Fallback() *CompiledRule {
	return t.fallback
}

// Compile validates a rule table and compiles every requirement.
// Configuration errors surface here rather than at evaluation time.
func (e *Engine) Compile(table *domain.RuleTable) (*CompiledTable, error) {
	if table == nil {
		return nil, fmt.Errorf("rule table is required")
	}

	compiled := &CompiledTable{
		ID:      table.ID,
		Version: table.Version,
		rules:   make([]*CompiledRule, 0, len(table.Rules)),
	}

	for i := range table.Rules {
		rule, err := e.compileRule(i, table.Rules[i])
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table.ID, err)
		}
		compiled.rules = append(compiled.rules, rule)

		if rule.Unconditional() && (compiled.fallback == nil || rule.rank > compiled.fallback.rank) {
			compiled.fallback = rule
		}
	}

	e.metrics.IncrementTableCompiled(compiled.fallback != nil)

	return compiled, nil
}

func (e *Engine) compileRule(index int, rule domain.DownPaymentRule) (*CompiledRule, error) {
	label := rule.Label()
	if label == "" {
		label = fmt.Sprintf("#%d", index+1)
	}

	rank := rule.Priority.Rank()
	if rank < 0 {
		return nil, fmt.Errorf("rule %s: %w %q", label, ErrUnknownPriority, string(rule.Priority))
	}

	if err := validateRule(&rule); err != nil {
		return nil, fmt.Errorf("rule %s: %w", label, err)
	}

	// The snapshot must not alias the source table.
	rule.Requirements = append([]domain.Requirement(nil), rule.Requirements...)

	compiled := &CompiledRule{
		Rule:         rule,
		Index:        index,
		rank:         rank,
		requirements: make([]*compiledRequirement, 0, len(rule.Requirements)),
	}

	for i, req := range rule.Requirements {
		cr, err := e.comparator.compile(req)
		if err != nil {
			return nil, fmt.Errorf("rule %s requirement %d: %w", label, i+1, err)
		}

		if compiled.Scope != 0 && compiled.Scope != cr.scope {
			return nil, fmt.Errorf("rule %s: %w", label, ErrMixedScope)
		}
		compiled.Scope = cr.scope
		compiled.requirements = append(compiled.requirements, cr)
	}

	return compiled, nil
}

func validateRule(rule *domain.DownPaymentRule) error {
	if rule.DefaultDownPaymentPercentage.IsNegative() || rule.MinDownPaymentPercentage.IsNegative() {
		return fmt.Errorf("%w: percentages must be non-negative", ErrInvalidRule)
	}

	counts := []domain.NullInt{
		rule.InstallmentCountMin,
		rule.InstallmentCountMax,
		rule.InstallmentCountDefault,
		rule.DaysToFirstDueDate,
		rule.MonthsToFirstDueDate,
	}
	for _, c := range counts {
		if c.Valid && c.Value < 0 {
			return fmt.Errorf("%w: installment and due-date values must be non-negative", ErrInvalidRule)
		}
	}

	if rule.InstallmentCountMin.Valid && rule.InstallmentCountMax.Valid &&
		rule.InstallmentCountMin.Value > rule.InstallmentCountMax.Value {
		return fmt.Errorf("%w: installmentCountMin %d exceeds installmentCountMax %d",
			ErrInvalidRule, rule.InstallmentCountMin.Value, rule.InstallmentCountMax.Value)
	}

	return nil
}
