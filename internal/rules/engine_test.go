package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan1      = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan1Next  = jan1.AddDate(1, 0, 0)
	eighteenM = jan1.AddDate(1, 6, 0)
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(domain.EngineConfig{}, nil)
	require.NoError(t, err)
	return engine
}

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// basePolicy has every fact present so any policy criteria can be evaluated.
func basePolicy(id string, premium int64) domain.Policy {
	return domain.Policy{
		ID:             id,
		Number:         id,
		Premium:        premium,
		CoverageType:   "Base Coverage Type",
		EffectiveDate:  jan1,
		ExpirationDate: jan1Next,
	}
}

func defaultRule() domain.DownPaymentRule {
	return domain.DownPaymentRule{
		ID:                           "default",
		Name:                         "Default Rule",
		Priority:                     domain.PriorityLow,
		DefaultDownPaymentPercentage: pct(25),
		MinDownPaymentPercentage:     pct(10),
	}
}

func luckyRule(req domain.Requirement) domain.DownPaymentRule {
	return domain.DownPaymentRule{
		ID:                           "lucky",
		Name:                         "Lucky Rule",
		Priority:                     domain.PriorityLow,
		DefaultDownPaymentPercentage: pct(20),
		MinDownPaymentPercentage:     pct(15),
		Requirements:                 []domain.Requirement{req},
	}
}

func bigBadRule(req domain.Requirement) domain.DownPaymentRule {
	return domain.DownPaymentRule{
		ID:                           "big-bad",
		Name:                         "Big Bad Rule",
		Priority:                     domain.PriorityLow,
		DefaultDownPaymentPercentage: pct(30),
		MinDownPaymentPercentage:     pct(30),
		Requirements:                 []domain.Requirement{req},
	}
}

func compileTable(t *testing.T, engine *Engine, rules ...domain.DownPaymentRule) *CompiledTable {
	t.Helper()
	table, err := engine.Compile(&domain.RuleTable{ID: "dp-tests", Version: "1", Rules: rules, Enabled: true})
	require.NoError(t, err)
	return table
}

func TestPolicySpecificRulesApplyPerPolicy(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	t.Run("coverage type and short rate", func(t *testing.T) {
		p1 := basePolicy("policy1", 1000000)
		p1.CoverageType = "Lucky Coverage Type"
		p2 := basePolicy("policy2", 10000)
		p2.ShortRate = true

		table := compileTable(t, engine,
			defaultRule(),
			luckyRule(domain.Requirement{Criteria: domain.CriteriaCoverageType, Comparison: domain.ComparisonEqualTo, Condition: "Lucky Coverage Type"}),
			bigBadRule(domain.Requirement{Criteria: domain.CriteriaShortRate, Comparison: domain.ComparisonEqualTo, Condition: true}),
		)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{ID: "q1", Policies: []domain.Policy{p1, p2}})
		require.NoError(t, err)
		assert.Equal(t, int64(203000), result.DownPayment)
		assert.Equal(t, int64(153000), result.MinDownPayment)
	})

	t.Run("minimum earned percentage and filings", func(t *testing.T) {
		p1 := basePolicy("policy1", 1000000)
		p1.MinEarnedPercentage = pct(25)
		p2 := basePolicy("policy2", 1000000)
		p2.Filings = true

		table := compileTable(t, engine,
			defaultRule(),
			luckyRule(domain.Requirement{Criteria: domain.CriteriaMinEarnedPercentage, Comparison: domain.ComparisonEqualTo, Condition: "25"}),
			bigBadRule(domain.Requirement{Criteria: domain.CriteriaFilings, Comparison: domain.ComparisonEqualTo, Condition: "true"}),
		)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{ID: "q2", Policies: []domain.Policy{p1, p2}})
		require.NoError(t, err)
		assert.Equal(t, int64(500000), result.DownPayment)
		assert.Equal(t, int64(450000), result.MinDownPayment)
	})

	t.Run("policy duration and auditable", func(t *testing.T) {
		p1 := basePolicy("policy1", 100000)
		p1.ExpirationDate = eighteenM
		p2 := basePolicy("policy2", 1000000)
		p2.Auditable = true

		table := compileTable(t, engine,
			defaultRule(),
			luckyRule(domain.Requirement{Criteria: domain.CriteriaPolicyDuration, Comparison: domain.ComparisonGreaterThan, Condition: "400"}),
			bigBadRule(domain.Requirement{Criteria: domain.CriteriaAuditable, Comparison: domain.ComparisonEqualTo, Condition: "true"}),
		)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{ID: "q3", Policies: []domain.Policy{p1, p2}})
		require.NoError(t, err)
		assert.Equal(t, int64(320000), result.DownPayment)
		assert.Equal(t, int64(315000), result.MinDownPayment)
	})

	t.Run("additional days to cancel and policy premium", func(t *testing.T) {
		p1 := basePolicy("policy1", 100000)
		p1.AdditionalDaysToCancel = 10
		p2 := basePolicy("policy2", 1000000)

		table := compileTable(t, engine,
			defaultRule(),
			luckyRule(domain.Requirement{Criteria: domain.CriteriaAdditionalDaysToCancel, Comparison: domain.ComparisonGreaterThan, Condition: "5"}),
			bigBadRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonEqualTo, Condition: 1000000}),
		)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{ID: "q4", Policies: []domain.Policy{p1, p2}})
		require.NoError(t, err)
		assert.Equal(t, int64(320000), result.DownPayment)
		assert.Equal(t, int64(315000), result.MinDownPayment)
	})
}

// threePolicyScenario mixes two policy rules with a quote rule over
// three policies, one of which carries taxes.
func threePolicyScenario(t *testing.T, engine *Engine) (*CompiledTable, *domain.Quote) {
	t.Helper()

	lucky := luckyRule(domain.Requirement{Criteria: domain.CriteriaAdditionalDaysToCancel, Comparison: domain.ComparisonGreaterThan, Condition: "5"})
	lucky.InstallmentCountMax = domain.Int(7)

	bigBad := bigBadRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonEqualTo, Condition: 1000000})
	bigBad.InstallmentCountMax = domain.Int(11)

	quoteRule := domain.DownPaymentRule{
		ID:                           "quote-specific",
		Name:                         "Quote Specific Rule",
		Priority:                     domain.PriorityLow,
		DefaultDownPaymentPercentage: pct(35),
		MinDownPaymentPercentage:     pct(35),
		InstallmentCountMin:          domain.Int(2),
		InstallmentCountMax:          domain.Int(10),
		InstallmentCountDefault:      domain.Int(5),
		OverrideMep:                  true,
		DaysToFirstDueDate:           domain.Int(3),
		MonthsToFirstDueDate:         domain.Int(3),
		Requirements: []domain.Requirement{
			{Criteria: domain.CriteriaTotalPremium, Comparison: domain.ComparisonGreaterThan, Condition: "100000000"},
		},
	}

	p1 := basePolicy("policy1", 100000)
	p1.AdditionalDaysToCancel = 10
	p2 := basePolicy("policy2", 1000000)
	p3 := basePolicy("policy3", 100000000)
	p3.Taxes = 100

	table := compileTable(t, engine, defaultRule(), lucky, bigBad, quoteRule)
	return table, &domain.Quote{ID: "q5", Policies: []domain.Policy{p1, p2, p3}}
}

func TestMostConservativeBoundsIncludeQuoteSpecificRules(t *testing.T) {
	engine := newTestEngine(t)

	table, quote := threePolicyScenario(t, engine)
	result, err := engine.Evaluate(context.Background(), table, quote)
	require.NoError(t, err)

	assert.Equal(t, 5, result.InstallmentCount)
	assert.Equal(t, 2, result.InstallmentCountMin)
	assert.Equal(t, 7, result.InstallmentCountMax)
	assert.Equal(t, 3, result.DaysToFirstDueDate)
	assert.Equal(t, 3, result.MonthsToFirstDueDate)
	assert.True(t, result.OverrideMep)

	// Policy rules keep their own policies; the quote rule prices policy3
	// on premium plus taxes.
	assert.Equal(t, int64(35320035), result.DownPayment)
	assert.Equal(t, int64(35315035), result.MinDownPayment)

	require.Len(t, result.Policies, 3)
	assert.Equal(t, "Lucky Rule", result.Policies[0].Rule)
	assert.Equal(t, "Big Bad Rule", result.Policies[1].Rule)
	assert.Equal(t, "Quote Specific Rule", result.Policies[2].Rule)
	assert.Equal(t, []string{"Lucky Rule", "Big Bad Rule", "Quote Specific Rule"}, result.MatchedRules)

	require.NotNil(t, result.MaxFirstDueDate)
	assert.Equal(t, time.Date(2025, time.April, 4, 0, 0, 0, 0, time.UTC), *result.MaxFirstDueDate)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	table, quote := threePolicyScenario(t, engine)

	first, err := engine.Evaluate(ctx, table, quote)
	require.NoError(t, err)
	require.Equal(t, int64(35320035), first.DownPayment)

	for i := 0; i < 20; i++ {
		again, err := engine.Evaluate(ctx, table, quote)
		require.NoError(t, err)
		assert.Equal(t, first, again, "run %d", i)
	}

	quotes := make([]*domain.Quote, 16)
	for i := range quotes {
		quotes[i] = quote
	}
	results, err := engine.EvaluateBatch(ctx, table, quotes)
	require.NoError(t, err)
	require.Len(t, results, len(quotes))
	for i, r := range results {
		assert.Equal(t, first, r, "batch item %d", i)
	}
}

func TestSummationNotAveraging(t *testing.T) {
	engine := newTestEngine(t)

	// $10,000 at 15% plus $100 at 50% is $1,550, not the 32.5% average.
	p1 := basePolicy("p1", 1000000)
	p1.CoverageType = "Auto"
	p2 := basePolicy("p2", 10000)
	p2.CoverageType = "Cargo"

	auto := luckyRule(domain.Requirement{Criteria: domain.CriteriaCoverageType, Comparison: domain.ComparisonEqualTo, Condition: "Auto"})
	auto.DefaultDownPaymentPercentage = pct(15)
	cargo := bigBadRule(domain.Requirement{Criteria: domain.CriteriaCoverageType, Comparison: domain.ComparisonEqualTo, Condition: "Cargo"})
	cargo.DefaultDownPaymentPercentage = pct(50)

	table := compileTable(t, engine, defaultRule(), auto, cargo)
	result, err := engine.Evaluate(context.Background(), table, &domain.Quote{Policies: []domain.Policy{p1, p2}})
	require.NoError(t, err)
	assert.Equal(t, int64(155000), result.DownPayment)
}

func TestFallbackRule(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	shortRate := bigBadRule(domain.Requirement{Criteria: domain.CriteriaShortRate, Comparison: domain.ComparisonEqualTo, Condition: true})
	shortRate.InstallmentCountMax = domain.Int(6)

	fallback := defaultRule()
	fallback.InstallmentCountMax = domain.Int(4)

	t.Run("applies only to unmatched policies", func(t *testing.T) {
		p1 := basePolicy("p1", 100000)
		p1.ShortRate = true
		p2 := basePolicy("p2", 100000)

		table := compileTable(t, engine, fallback, shortRate)
		result, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{p1, p2}})
		require.NoError(t, err)

		assert.Equal(t, int64(30000+25000), result.DownPayment)
		assert.False(t, result.Policies[0].Fallback)
		assert.True(t, result.Policies[1].Fallback)
		assert.Equal(t, 4, result.InstallmentCountMax, "fallback bounds participate once it priced a policy")
	})

	t.Run("does not compete with explicit matches", func(t *testing.T) {
		p1 := basePolicy("p1", 100000)
		p1.ShortRate = true

		table := compileTable(t, engine, fallback, shortRate)
		result, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{p1}})
		require.NoError(t, err)

		assert.Equal(t, int64(30000), result.DownPayment)
		assert.Equal(t, 6, result.InstallmentCountMax)
		assert.Equal(t, []string{"Big Bad Rule"}, result.MatchedRules)
	})

	t.Run("missing fallback fails", func(t *testing.T) {
		table := compileTable(t, engine, shortRate)
		_, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{basePolicy("p9", 100)}})

		var unresolved *UnresolvedPolicyError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "p9", unresolved.PolicyID)
		assert.ErrorIs(t, err, ErrUnresolvedPolicy)
	})
}

func TestQuoteScopedRuleAppliesToEveryPolicy(t *testing.T) {
	engine := newTestEngine(t)

	renewal := domain.DownPaymentRule{
		Name:                         "Renewal",
		DefaultDownPaymentPercentage: pct(10),
		MinDownPaymentPercentage:     pct(5),
		Requirements: []domain.Requirement{
			{Criteria: domain.CriteriaRenewal, Comparison: domain.ComparisonEqualTo, Condition: "true"},
			{Criteria: domain.CriteriaState, Comparison: domain.ComparisonEqualTo, Condition: "TX"},
		},
	}
	table := compileTable(t, engine, defaultRule(), renewal)

	policies := []domain.Policy{basePolicy("a", 100000), basePolicy("b", 200000), basePolicy("c", 300000)}

	result, err := engine.Evaluate(context.Background(), table, &domain.Quote{State: "TX", Renewal: true, Policies: policies})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), result.DownPayment)
	assert.Equal(t, int64(30000), result.MinDownPayment)
	for _, c := range result.Policies {
		assert.Equal(t, "Renewal", c.Rule)
	}

	result, err = engine.Evaluate(context.Background(), table, &domain.Quote{State: "OK", Renewal: true, Policies: policies})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), result.DownPayment, "quote rule must not apply when any requirement fails")
}

func TestPriorityResolution(t *testing.T) {
	ctx := context.Background()

	high := luckyRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThanOrEqual, Condition: 1000})
	high.Priority = domain.PriorityHigh
	high.DefaultDownPaymentPercentage = pct(5)

	low := bigBadRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThan, Condition: 0})

	t.Run("higher priority wins regardless of percentages", func(t *testing.T) {
		engine := newTestEngine(t)
		table := compileTable(t, engine, defaultRule(), low, high)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 100000)}})
		require.NoError(t, err)
		assert.Equal(t, int64(5000), result.DownPayment)
	})

	t.Run("higher priority quote rule beats policy rule", func(t *testing.T) {
		engine := newTestEngine(t)
		quoteRule := domain.DownPaymentRule{
			Name:                         "Big Quote",
			Priority:                     domain.PriorityMedium,
			DefaultDownPaymentPercentage: pct(40),
			Requirements:                 []domain.Requirement{{Criteria: domain.CriteriaTotalPremium, Comparison: domain.ComparisonGreaterThan, Condition: 0}},
		}
		table := compileTable(t, engine, defaultRule(), low, quoteRule)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 100000)}})
		require.NoError(t, err)
		assert.Equal(t, int64(40000), result.DownPayment)
	})

	t.Run("equal priority first match", func(t *testing.T) {
		engine := newTestEngine(t)
		first := bigBadRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThan, Condition: 0})
		first.DefaultDownPaymentPercentage = pct(12)
		table := compileTable(t, engine, defaultRule(), first, low)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 100000)}})
		require.NoError(t, err)
		assert.Equal(t, int64(12000), result.DownPayment)
	})

	t.Run("equal priority most conservative", func(t *testing.T) {
		engine, err := NewEngine(domain.EngineConfig{TieBreak: domain.TieBreakMostConservative}, nil)
		require.NoError(t, err)
		first := bigBadRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThan, Condition: 0})
		first.DefaultDownPaymentPercentage = pct(12)
		table := compileTable(t, engine, defaultRule(), first, low)

		result, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 100000)}})
		require.NoError(t, err)
		assert.Equal(t, int64(30000), result.DownPayment)
	})
}

func TestBoundsUseSystemDefaults(t *testing.T) {
	defaults := domain.BoundDefaults{
		InstallmentCountMin:     1,
		InstallmentCountMax:     9,
		InstallmentCountDefault: 8,
		DaysToFirstDueDate:      2,
		MonthsToFirstDueDate:    1,
	}
	engine, err := NewEngine(domain.EngineConfig{Defaults: defaults}, nil)
	require.NoError(t, err)

	rule := luckyRule(domain.Requirement{Criteria: domain.CriteriaAuditable, Comparison: domain.ComparisonEqualTo, Condition: false})
	rule.InstallmentCountMin = domain.Int(3)

	table := compileTable(t, engine, defaultRule(), rule)
	result, err := engine.Evaluate(context.Background(), table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 1000)}})
	require.NoError(t, err)

	assert.Equal(t, 3, result.InstallmentCountMin)
	assert.Equal(t, 9, result.InstallmentCountMax)
	assert.Equal(t, 8, result.InstallmentCount)
	assert.Equal(t, 2, result.DaysToFirstDueDate)
	require.NotNil(t, result.MaxFirstDueDate)
	assert.Equal(t, jan1.AddDate(0, 1, 2), *result.MaxFirstDueDate)
}

func TestPartialBoundDefaults(t *testing.T) {
	t.Run("unset counts use system values", func(t *testing.T) {
		engine, err := NewEngine(domain.EngineConfig{Defaults: domain.BoundDefaults{DaysToFirstDueDate: 5}}, nil)
		require.NoError(t, err)

		table := compileTable(t, engine, defaultRule())
		result, err := engine.Evaluate(context.Background(), table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 1000)}})
		require.NoError(t, err)

		assert.Equal(t, 1, result.InstallmentCountMin)
		assert.Equal(t, 12, result.InstallmentCountMax)
		assert.Equal(t, 12, result.InstallmentCount)
		assert.Equal(t, 5, result.DaysToFirstDueDate)
		assert.Equal(t, 0, result.MonthsToFirstDueDate)
	})

	t.Run("inconsistent defaults are rejected", func(t *testing.T) {
		_, err := NewEngine(domain.EngineConfig{Defaults: domain.BoundDefaults{InstallmentCountMax: 6}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside [1, 6]")

		_, err = NewEngine(domain.EngineConfig{Defaults: domain.BoundDefaults{InstallmentCountMin: 4, InstallmentCountMax: 3, InstallmentCountDefault: 3}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds max")
	})
}

func TestNoDueDateWithoutStartDate(t *testing.T) {
	engine := newTestEngine(t)
	table := compileTable(t, engine, defaultRule())

	result, err := engine.Evaluate(context.Background(), table, &domain.Quote{Policies: []domain.Policy{{ID: "p", Premium: 100}}})
	require.NoError(t, err)
	assert.Nil(t, result.MaxFirstDueDate)
}

func TestEvaluationErrors(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("missing policy fact", func(t *testing.T) {
		table := compileTable(t, engine, defaultRule(),
			luckyRule(domain.Requirement{Criteria: domain.CriteriaCoverageType, Comparison: domain.ComparisonEqualTo, Condition: "Auto"}))

		p := basePolicy("p1", 100)
		p.CoverageType = ""
		_, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{p}})

		var missing *MissingFactError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, domain.CriteriaCoverageType, missing.Criteria)
		assert.Equal(t, "p1", missing.PolicyID)
	})

	t.Run("missing quote fact", func(t *testing.T) {
		table := compileTable(t, engine, defaultRule(),
			luckyRule(domain.Requirement{Criteria: domain.CriteriaState, Comparison: domain.ComparisonEqualTo, Condition: "CA"}))

		_, err := engine.Evaluate(ctx, table, &domain.Quote{Policies: []domain.Policy{basePolicy("p1", 100)}})
		assert.ErrorIs(t, err, ErrMissingFact)
	})

	t.Run("empty quote", func(t *testing.T) {
		table := compileTable(t, engine, defaultRule())
		_, err := engine.Evaluate(ctx, table, &domain.Quote{})
		assert.ErrorIs(t, err, ErrEmptyQuote)
	})
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	engine := newTestEngine(t)
	table := compileTable(t, engine, defaultRule(),
		luckyRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThan, Condition: "500"}))

	quote := &domain.Quote{ID: "q", Policies: []domain.Policy{basePolicy("a", 1000), basePolicy("b", 100)}}

	first, err := engine.Evaluate(context.Background(), table, quote)
	require.NoError(t, err)
	second, err := engine.Evaluate(context.Background(), table, quote)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1000), quote.Policies[0].Premium)
	assert.Len(t, quote.Policies, 2)
}

func TestEvaluateBatch(t *testing.T) {
	engine, err := NewEngine(domain.EngineConfig{MaxWorkers: 3}, metrics.New())
	require.NoError(t, err)

	table := compileTable(t, engine, defaultRule(),
		luckyRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThan, Condition: 5000}))

	quotes := make([]*domain.Quote, 20)
	for i := range quotes {
		quotes[i] = &domain.Quote{Policies: []domain.Policy{basePolicy("p", int64(1000*(i+1)))}}
	}

	results, err := engine.EvaluateBatch(context.Background(), table, quotes)
	require.NoError(t, err)
	require.Len(t, results, len(quotes))

	for i, r := range results {
		premium := int64(1000 * (i + 1))
		want := percentOf(premium, pct(25))
		if premium > 5000 {
			want = percentOf(premium, pct(20))
		}
		assert.Equal(t, want, r.DownPayment, "quote %d", i)
	}

	t.Run("first error fails the batch", func(t *testing.T) {
		bad := append([]*domain.Quote{}, quotes...)
		bad[7] = &domain.Quote{ID: "empty"}

		_, err := engine.EvaluateBatch(context.Background(), table, bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyQuote))
		assert.Contains(t, err.Error(), "empty")
	})
}

func TestPercentOfRounding(t *testing.T) {
	tests := []struct {
		basis int64
		pct   decimal.Decimal
		want  int64
	}{
		{1000000, pct(20), 200000},
		{333, pct(10), 33},
		{335, pct(10), 34},
		{100000100, pct(35), 35000035},
		{999, decimal.RequireFromString("12.5"), 125},
		{0, pct(50), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percentOf(tt.basis, tt.pct), "%d at %s%%", tt.basis, tt.pct)
	}
}
