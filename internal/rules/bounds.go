package rules

import (
	"github.com/opensource-finance/downpay/internal/domain"
)

type bounds struct {
	installmentCountMin     int
	installmentCountMax     int
	installmentCountDefault int
	daysToFirstDueDate      int
	monthsToFirstDueDate    int
	overrideMep             bool
	rules                   []string
}

type combinator func(current, next int) int

func tightest(current, next int) int { return min(current, next) }
func largest(current, next int) int  { return max(current, next) }

// boundField pairs a rule field with the combinator that keeps the most
// conservative value across rules.
type boundField struct {
	get     func(*domain.DownPaymentRule) domain.NullInt
	combine combinator
	def     func(domain.BoundDefaults) int
	set     func(*bounds, int)
}

var boundFields = []boundField{
	{
		get:     func(r *domain.DownPaymentRule) domain.NullInt { return r.InstallmentCountMax },
		combine: tightest,
		def:     func(d domain.BoundDefaults) int { return d.InstallmentCountMax },
		set:     func(b *bounds, v int) { b.installmentCountMax = v },
	},
	{
		get:     func(r *domain.DownPaymentRule) domain.NullInt { return r.InstallmentCountMin },
		combine: largest,
		def:     func(d domain.BoundDefaults) int { return d.InstallmentCountMin },
		set:     func(b *bounds, v int) { b.installmentCountMin = v },
	},
	{
		get:     func(r *domain.DownPaymentRule) domain.NullInt { return r.InstallmentCountDefault },
		combine: tightest,
		def:     func(d domain.BoundDefaults) int { return d.InstallmentCountDefault },
		set:     func(b *bounds, v int) { b.installmentCountDefault = v },
	},
	{
		get:     func(r *domain.DownPaymentRule) domain.NullInt { return r.DaysToFirstDueDate },
		combine: tightest,
		def:     func(d domain.BoundDefaults) int { return d.DaysToFirstDueDate },
		set:     func(b *bounds, v int) { b.daysToFirstDueDate = v },
	},
	{
		get:     func(r *domain.DownPaymentRule) domain.NullInt { return r.MonthsToFirstDueDate },
		combine: tightest,
		def:     func(d domain.BoundDefaults) int { return d.MonthsToFirstDueDate },
		set:     func(b *bounds, v int) { b.monthsToFirstDueDate = v },
	},
}

// resolveBounds combines installment and due-date fields over every rule
// that matched anything in the quote, regardless of priority. The fallback
// rule participates only when it priced at least one policy. Fields no
// participating rule sets keep their system default.
func resolveBounds(table *CompiledTable, matches []ruleMatch, fallbackUsed bool, defaults domain.BoundDefaults) *bounds {
	participants := make([]*CompiledRule, 0, len(matches)+1)
	for _, m := range matches {
		participants = append(participants, m.rule)
	}
	if fallbackUsed && table.fallback != nil {
		participants = insertByIndex(participants, table.fallback)
	}

	out := &bounds{rules: make([]string, 0, len(participants))}
	for _, r := range participants {
		out.rules = append(out.rules, r.Rule.Label())
		if r.Rule.OverrideMep {
			out.overrideMep = true
		}
	}

	for _, f := range boundFields {
		value, set := 0, false
		for _, r := range participants {
			v := f.get(&r.Rule)
			if !v.Valid {
				continue
			}
			if !set {
				value, set = v.Value, true
				continue
			}
			value = f.combine(value, v.Value)
		}
		if !set {
			value = f.def(defaults)
		}
		f.set(out, value)
	}

	return out
}

// insertByIndex keeps participants in table order.
func insertByIndex(rules []*CompiledRule, rule *CompiledRule) []*CompiledRule {
	for i, r := range rules {
		if rule.Index < r.Index {
			rules = append(rules[:i+1], rules[i:]...)
			rules[i] = rule
			return rules
		}
	}
	return append(rules, rule)
}
