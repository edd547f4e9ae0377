package rules

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeOf(t *testing.T) {
	quoteLevel := []domain.Criteria{
		domain.CriteriaTotalPremium,
		domain.CriteriaRenewal,
		domain.CriteriaState,
	}
	policyLevel := []domain.Criteria{
		domain.CriteriaCoverageType,
		domain.CriteriaShortRate,
		domain.CriteriaMinEarnedPercentage,
		domain.CriteriaFilings,
		domain.CriteriaPolicyDuration,
		domain.CriteriaAuditable,
		domain.CriteriaAdditionalDaysToCancel,
		domain.CriteriaPolicyPremium,
	}

	for _, c := range quoteLevel {
		scope, err := ScopeOf(c)
		require.NoError(t, err)
		assert.Equal(t, ScopeQuote, scope, c)
	}
	for _, c := range policyLevel {
		scope, err := ScopeOf(c)
		require.NoError(t, err)
		assert.Equal(t, ScopePolicy, scope, c)
	}

	_, err := ScopeOf("zip_code")
	var unknown *UnknownCriteriaError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, domain.Criteria("zip_code"), unknown.Criteria)
}

func TestNormalizeCondition(t *testing.T) {
	tests := []struct {
		name      string
		criteria  domain.Criteria
		condition any
		want      Value
		mismatch  bool
	}{
		{"numeric string", domain.CriteriaMinEarnedPercentage, "25", numberValue(decimal.NewFromInt(25)), false},
		{"padded numeric string", domain.CriteriaPolicyDuration, " 400 ", numberValue(decimal.NewFromInt(400)), false},
		{"float", domain.CriteriaPolicyPremium, float64(1000000), numberValue(decimal.NewFromInt(1000000)), false},
		{"int", domain.CriteriaAdditionalDaysToCancel, 5, numberValue(decimal.NewFromInt(5)), false},
		{"json number", domain.CriteriaTotalPremium, json.Number("100000000"), numberValue(decimal.NewFromInt(100000000)), false},
		{"bool", domain.CriteriaShortRate, true, boolValue(true), false},
		{"bool string", domain.CriteriaFilings, "true", boolValue(true), false},
		{"bool string mixed case", domain.CriteriaAuditable, "False", boolValue(false), false},
		{"string", domain.CriteriaCoverageType, "Lucky Coverage Type", stringValue("Lucky Coverage Type"), false},
		{"word for number", domain.CriteriaPolicyPremium, "lots", Value{}, true},
		{"bool for number", domain.CriteriaPolicyPremium, true, Value{}, true},
		{"yes for bool", domain.CriteriaRenewal, "yes", Value{}, true},
		{"number for bool", domain.CriteriaRenewal, 1, Value{}, true},
		{"number for string", domain.CriteriaState, 42, Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCondition(tt.criteria, tt.condition)
			if tt.mismatch {
				assert.ErrorIs(t, err, ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.True(t, tt.want.Num.Equal(got.Num), "want %s got %s", tt.want.Num, got.Num)
			assert.Equal(t, tt.want.Bool, got.Bool)
			assert.Equal(t, tt.want.Str, got.Str)
		})
	}
}

func TestStringConditionMatchesNumericFact(t *testing.T) {
	engine := newTestEngine(t)
	cmp, err := engine.comparator.compile(domain.Requirement{
		Criteria:   domain.CriteriaMinEarnedPercentage,
		Comparison: domain.ComparisonEqualTo,
		Condition:  "25",
	})
	require.NoError(t, err)

	p := basePolicy("p", 100)
	p.MinEarnedPercentage = decimal.NewFromInt(25)

	ok, err := cmp.matches(target{quote: &domain.Quote{Policies: []domain.Policy{p}}, policy: &p})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestComparisons(t *testing.T) {
	engine := newTestEngine(t)
	p := basePolicy("p", 1000)
	tgt := target{quote: &domain.Quote{Policies: []domain.Policy{p}}, policy: &p}

	tests := []struct {
		comparison domain.Comparison
		condition  any
		want       bool
	}{
		{domain.ComparisonEqualTo, 1000, true},
		{domain.ComparisonNotEqualTo, 1000, false},
		{domain.ComparisonGreaterThan, "999", true},
		{domain.ComparisonGreaterThan, 1000, false},
		{domain.ComparisonGreaterThanOrEqual, 1000, true},
		{domain.ComparisonLessThan, "1000.5", true},
		{domain.ComparisonLessThanOrEqual, 999, false},
	}

	for _, tt := range tests {
		req, err := engine.comparator.compile(domain.Requirement{
			Criteria:   domain.CriteriaPolicyPremium,
			Comparison: tt.comparison,
			Condition:  tt.condition,
		})
		require.NoError(t, err)

		got, err := req.matches(tgt)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %v", tt.comparison, tt.condition)
	}
}

func TestNumericEqualityIsExact(t *testing.T) {
	engine := newTestEngine(t)

	// 2^53 + 1 has no float64 representation.
	p := basePolicy("p", 9007199254740993)
	tgt := target{quote: &domain.Quote{Policies: []domain.Policy{p}}, policy: &p}

	tests := []struct {
		comparison domain.Comparison
		condition  any
		want       bool
	}{
		{domain.ComparisonEqualTo, "9007199254740992", false},
		{domain.ComparisonEqualTo, "9007199254740993", true},
		{domain.ComparisonNotEqualTo, "9007199254740992", true},
		{domain.ComparisonGreaterThan, "9007199254740992", true},
		{domain.ComparisonLessThan, "9007199254740993.5", true},
		{domain.ComparisonEqualTo, "9007199254740993.0", true},
	}

	for _, tt := range tests {
		req, err := engine.comparator.compile(domain.Requirement{
			Criteria:   domain.CriteriaPolicyPremium,
			Comparison: tt.comparison,
			Condition:  tt.condition,
		})
		require.NoError(t, err)

		got, err := req.matches(tgt)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %v", tt.comparison, tt.condition)
	}

	t.Run("evaluation picks the exact rule", func(t *testing.T) {
		table := compileTable(t, engine, defaultRule(),
			bigBadRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonEqualTo, Condition: "9007199254740992"}))

		result, err := engine.Evaluate(context.Background(), table, &domain.Quote{Policies: []domain.Policy{p}})
		require.NoError(t, err)
		assert.Equal(t, "Default Rule", result.Policies[0].Rule)
	})
}

func TestCompileRejectsInvalidTables(t *testing.T) {
	engine := newTestEngine(t)

	withReq := func(req domain.Requirement) domain.DownPaymentRule {
		r := defaultRule()
		r.Requirements = []domain.Requirement{req}
		return r
	}

	tests := []struct {
		name string
		rule domain.DownPaymentRule
		want error
	}{
		{
			name: "unknown criteria",
			rule: withReq(domain.Requirement{Criteria: "zip_code", Comparison: domain.ComparisonEqualTo, Condition: "73301"}),
			want: ErrUnknownCriteria,
		},
		{
			name: "unknown comparison",
			rule: withReq(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: "about", Condition: 1}),
			want: ErrUnknownComparison,
		},
		{
			name: "condition type mismatch",
			rule: withReq(domain.Requirement{Criteria: domain.CriteriaShortRate, Comparison: domain.ComparisonEqualTo, Condition: "sometimes"}),
			want: ErrTypeMismatch,
		},
		{
			name: "ordering on bool fact",
			rule: withReq(domain.Requirement{Criteria: domain.CriteriaFilings, Comparison: domain.ComparisonGreaterThan, Condition: true}),
			want: ErrTypeMismatch,
		},
		{
			name: "ordering on string fact",
			rule: withReq(domain.Requirement{Criteria: domain.CriteriaState, Comparison: domain.ComparisonLessThan, Condition: "TX"}),
			want: ErrTypeMismatch,
		},
		{
			name: "mixed scope",
			rule: func() domain.DownPaymentRule {
				r := defaultRule()
				r.Requirements = []domain.Requirement{
					{Criteria: domain.CriteriaState, Comparison: domain.ComparisonEqualTo, Condition: "TX"},
					{Criteria: domain.CriteriaFilings, Comparison: domain.ComparisonEqualTo, Condition: true},
				}
				return r
			}(),
			want: ErrMixedScope,
		},
		{
			name: "unknown priority",
			rule: func() domain.DownPaymentRule {
				r := defaultRule()
				r.Priority = "urgent"
				return r
			}(),
			want: ErrUnknownPriority,
		},
		{
			name: "negative percentage",
			rule: func() domain.DownPaymentRule {
				r := defaultRule()
				r.MinDownPaymentPercentage = decimal.NewFromInt(-1)
				return r
			}(),
			want: ErrInvalidRule,
		},
		{
			name: "min above max",
			rule: func() domain.DownPaymentRule {
				r := defaultRule()
				r.InstallmentCountMin = domain.Int(9)
				r.InstallmentCountMax = domain.Int(3)
				return r
			}(),
			want: ErrInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Compile(&domain.RuleTable{ID: "bad", Rules: []domain.DownPaymentRule{tt.rule}})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompileFallbackSelection(t *testing.T) {
	engine := newTestEngine(t)

	low := defaultRule()
	high := defaultRule()
	high.Name = "High Default"
	high.Priority = domain.PriorityHigh
	conditional := luckyRule(domain.Requirement{Criteria: domain.CriteriaFilings, Comparison: domain.ComparisonEqualTo, Condition: true})

	table := compileTable(t, engine, low, conditional, high)
	require.NotNil(t, table.Fallback())
	assert.Equal(t, "High Default", table.Fallback().Rule.Name)
	assert.Len(t, table.Rules(), 3)

	table = compileTable(t, engine, conditional)
	assert.Nil(t, table.Fallback())
}

func TestCompileSnapshotsTable(t *testing.T) {
	engine := newTestEngine(t)

	cfg := &domain.RuleTable{ID: "t", Rules: []domain.DownPaymentRule{
		defaultRule(),
		luckyRule(domain.Requirement{Criteria: domain.CriteriaPolicyPremium, Comparison: domain.ComparisonGreaterThan, Condition: 500}),
	}}
	table, err := engine.Compile(cfg)
	require.NoError(t, err)

	cfg.Rules[1].Requirements[0].Condition = 5
	cfg.Rules[1].DefaultDownPaymentPercentage = decimal.NewFromInt(90)

	result, err := engine.Evaluate(t.Context(), table, &domain.Quote{Policies: []domain.Policy{basePolicy("p", 1000)}})
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.DownPayment)
}

func TestRuleTableJSON(t *testing.T) {
	raw := `{
		"id": "dp",
		"version": "2",
		"rules": [
			{"name": "Default", "priority": "low", "defaultDownPaymentPercentage": 25, "minDownPaymentPercentage": "10"},
			{
				"name": "Quote Specific Rule",
				"priority": "low",
				"defaultDownPaymentPercentage": 35,
				"minDownPaymentPercentage": 35,
				"installmentCountMin": 2,
				"installmentCountMax": "10",
				"installmentCountDefault": 5,
				"daysBetweenEffectiveDateAndFirstDueDate": "3",
				"monthsBetweenEffectiveDateAndFirstDueDate": "3",
				"requirements": [{"criteria": "total_premium", "comparison": "greater_than", "condition": "100000000"}]
			}
		]
	}`

	var table domain.RuleTable
	require.NoError(t, json.Unmarshal([]byte(raw), &table))
	require.Len(t, table.Rules, 2)

	quoteRule := table.Rules[1]
	assert.Equal(t, domain.Int(10), quoteRule.InstallmentCountMax)
	assert.Equal(t, domain.Int(3), quoteRule.DaysToFirstDueDate)
	assert.False(t, table.Rules[0].InstallmentCountMax.Valid)
	assert.True(t, decimal.NewFromInt(10).Equal(table.Rules[0].MinDownPaymentPercentage))

	compiled, err := newTestEngine(t).Compile(&table)
	require.NoError(t, err)
	assert.Equal(t, ScopeQuote, compiled.Rules()[1].Scope)
}
