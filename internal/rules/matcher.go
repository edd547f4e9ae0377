package rules

import (
	"github.com/opensource-finance/downpay/internal/domain"
)

// MatchResult records which targets of a quote a rule matched.
// Quote is set for quote-scoped rules whose requirements all held against
// the quote; Policies lists the indices of matched policies for
// policy-scoped rules.
type MatchResult struct {
	Quote    bool
	Policies []int
}

// Any reports whether the rule matched anything in the quote.
func (m MatchResult) Any() bool {
	return m.Quote || len(m.Policies) > 0
}

// AppliesTo reports whether the match covers the policy at index i.
// A quote-level match covers every policy.
func (m MatchResult) AppliesTo(i int) bool {
	if m.Quote {
		return true
	}
	for _, p := range m.Policies {
		if p == i {
			return true
		}
	}
	return false
}

type ruleMatch struct {
	rule   *CompiledRule
	result MatchResult
}

// Match evaluates a conditional rule against a quote. Unconditional rules
// never match here; they only act as the table fallback.
func (r *CompiledRule) Match(quote *domain.Quote) (MatchResult, error) {
	if r.Unconditional() {
		return MatchResult{}, nil
	}

	if r.Scope == ScopeQuote {
		ok, err := r.matchTarget(target{quote: quote})
		return MatchResult{Quote: ok}, err
	}

	var result MatchResult
	for i := range quote.Policies {
		ok, err := r.matchTarget(target{quote: quote, policy: &quote.Policies[i]})
		if err != nil {
			return MatchResult{}, err
		}
		if ok {
			result.Policies = append(result.Policies, i)
		}
	}
	return result, nil
}

// matchTarget ANDs every requirement against a single target.
func (r *CompiledRule) matchTarget(t target) (bool, error) {
	for _, req := range r.requirements {
		ok, err := req.matches(t)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// match runs every conditional rule in table order.
func (t *CompiledTable) match(quote *domain.Quote) ([]ruleMatch, error) {
	matches := make([]ruleMatch, 0, len(t.rules))
	for _, rule := range t.rules {
		if rule.Unconditional() {
			continue
		}
		result, err := rule.Match(quote)
		if err != nil {
			return nil, err
		}
		if result.Any() {
			matches = append(matches, ruleMatch{rule: rule, result: result})
		}
	}
	return matches, nil
}
