package rules

import (
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/shopspring/decimal"
)

// Scope is the granularity at which a criteria is evaluated.
type Scope int

const (
	// ScopeQuote criteria are checked once against quote-derived facts.
	ScopeQuote Scope = iota + 1
	// ScopePolicy criteria are checked independently for each policy.
	ScopePolicy
)

func (s Scope) String() string {
	switch s {
	case ScopeQuote:
		return "quote"
	case ScopePolicy:
		return "policy"
	default:
		return "unconditional"
	}
}

// Kind is the semantic type of a fact.
type Kind int

const (
	KindNumber Kind = iota + 1
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// target is the record a fact is read from. policy is nil for quote facts.
type target struct {
	quote  *domain.Quote
	policy *domain.Policy
}

type accessor func(t target) (Value, bool)

type factSpec struct {
	scope Scope
	kind  Kind
	get   accessor
}

var facts = map[domain.Criteria]factSpec{
	domain.CriteriaTotalPremium: {ScopeQuote, KindNumber, func(t target) (Value, bool) {
		return numberValue(decimal.NewFromInt(t.quote.TotalPremium())), true
	}},
	domain.CriteriaRenewal: {ScopeQuote, KindBool, func(t target) (Value, bool) {
		return boolValue(t.quote.Renewal), true
	}},
	domain.CriteriaState: {ScopeQuote, KindString, func(t target) (Value, bool) {
		return stringValue(t.quote.State), t.quote.State != ""
	}},

	domain.CriteriaCoverageType: {ScopePolicy, KindString, func(t target) (Value, bool) {
		return stringValue(t.policy.CoverageType), t.policy.CoverageType != ""
	}},
	domain.CriteriaShortRate: {ScopePolicy, KindBool, func(t target) (Value, bool) {
		return boolValue(t.policy.ShortRate), true
	}},
	domain.CriteriaMinEarnedPercentage: {ScopePolicy, KindNumber, func(t target) (Value, bool) {
		return numberValue(t.policy.MinEarnedPercentage), true
	}},
	domain.CriteriaFilings: {ScopePolicy, KindBool, func(t target) (Value, bool) {
		return boolValue(t.policy.Filings), true
	}},
	domain.CriteriaPolicyDuration: {ScopePolicy, KindNumber, func(t target) (Value, bool) {
		days, ok := t.policy.Duration()
		return numberValue(decimal.NewFromInt(int64(days))), ok
	}},
	domain.CriteriaAuditable: {ScopePolicy, KindBool, func(t target) (Value, bool) {
		return boolValue(t.policy.Auditable), true
	}},
	domain.CriteriaAdditionalDaysToCancel: {ScopePolicy, KindNumber, func(t target) (Value, bool) {
		return numberValue(decimal.NewFromInt(int64(t.policy.AdditionalDaysToCancel))), true
	}},
	domain.CriteriaPolicyPremium: {ScopePolicy, KindNumber, func(t target) (Value, bool) {
		return numberValue(decimal.NewFromInt(t.policy.Premium)), true
	}},
}

// ScopeOf classifies a criteria as quote-level or policy-level.
func ScopeOf(c domain.Criteria) (Scope, error) {
	spec, ok := facts[c]
	if !ok {
		return 0, &UnknownCriteriaError{Criteria: c}
	}
	return spec.scope, nil
}

// KindOf returns the fact type a criteria's condition is normalized to.
func KindOf(c domain.Criteria) (Kind, error) {
	spec, ok := facts[c]
	if !ok {
		return 0, &UnknownCriteriaError{Criteria: c}
	}
	return spec.kind, nil
}

// lookup reads the fact named by c from t.
func lookup(c domain.Criteria, t target) (Value, error) {
	spec, ok := facts[c]
	if !ok {
		return Value{}, &UnknownCriteriaError{Criteria: c}
	}

	var policyID string
	if spec.scope == ScopePolicy {
		if t.policy == nil {
			return Value{}, &MissingFactError{Criteria: c}
		}
		policyID = policyLabel(t.policy)
	}

	v, ok := spec.get(t)
	if !ok {
		return Value{}, &MissingFactError{Criteria: c, PolicyID: policyID}
	}
	return v, nil
}

func policyLabel(p *domain.Policy) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Number
}
