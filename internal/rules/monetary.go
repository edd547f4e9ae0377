package rules

import (
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percentOf applies pct to basis in minor units, rounding half away from zero.
func percentOf(basis int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(basis).Mul(pct).Div(hundred).Round(0).IntPart()
}

type monetary struct {
	downPayment    int64
	minDownPayment int64
	contributions  []domain.PolicyContribution
	fallbackUsed   bool
}

// resolveMonetary prices each policy with its winning rule and sums the
// contributions. Totals are never averaged across rules.
func resolveMonetary(table *CompiledTable, quote *domain.Quote, matches []ruleMatch, tieBreak domain.TieBreak) (*monetary, error) {
	out := &monetary{
		contributions: make([]domain.PolicyContribution, 0, len(quote.Policies)),
	}

	for i := range quote.Policies {
		policy := &quote.Policies[i]

		var winner *CompiledRule
		for _, m := range matches {
			if !m.result.AppliesTo(i) {
				continue
			}
			if winner == nil || outranks(m.rule, winner, tieBreak) {
				winner = m.rule
			}
		}

		fallback := false
		if winner == nil {
			if table.fallback == nil {
				return nil, &UnresolvedPolicyError{PolicyID: policyLabel(policy), TableID: table.ID}
			}
			winner = table.fallback
			fallback = true
			out.fallbackUsed = true
		}

		basis := policy.Basis()
		contribution := domain.PolicyContribution{
			PolicyID:       policyLabel(policy),
			Rule:           winner.Rule.Label(),
			Fallback:       fallback,
			Basis:          basis,
			DownPayment:    percentOf(basis, winner.Rule.DefaultDownPaymentPercentage),
			MinDownPayment: percentOf(basis, winner.Rule.MinDownPaymentPercentage),
		}

		out.downPayment += contribution.DownPayment
		out.minDownPayment += contribution.MinDownPayment
		out.contributions = append(out.contributions, contribution)
	}

	return out, nil
}

// outranks reports whether a should price a policy instead of b.
// Higher priority wins. At equal priority a policy-scoped rule beats a
// quote-scoped one, then the tie-break applies, then table order.
func outranks(a, b *CompiledRule, tieBreak domain.TieBreak) bool {
	if a.rank != b.rank {
		return a.rank > b.rank
	}

	if a.Scope != b.Scope {
		return a.Scope == ScopePolicy
	}

	if tieBreak == domain.TieBreakMostConservative {
		if c := a.Rule.DefaultDownPaymentPercentage.Cmp(b.Rule.DefaultDownPaymentPercentage); c != 0 {
			return c > 0
		}
		if c := a.Rule.MinDownPaymentPercentage.Cmp(b.Rule.MinDownPaymentPercentage); c != 0 {
			return c > 0
		}
	}

	return a.Index < b.Index
}
