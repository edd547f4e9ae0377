package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is an insured item belonging to a quote.
// Monetary fields are in minor currency units (cents).
type Policy struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`

	Premium int64 `json:"premium"`
	Taxes   int64 `json:"taxes"`

	ShortRate              bool            `json:"shortRate"`
	MinEarnedPercentage    decimal.Decimal `json:"minEarnedPercentage"`
	Filings                bool            `json:"filings"`
	Auditable              bool            `json:"auditable"`
	AdditionalDaysToCancel int             `json:"additionalDaysToCancel"`
	CoverageType           string          `json:"coverageType,omitempty"`

	EffectiveDate  time.Time `json:"effectiveDate"`
	ExpirationDate time.Time `json:"expirationDate"`
}

// Duration returns the number of whole days between the effective and
// expiration dates. It reports false when either date is missing.
func (p *Policy) Duration() (int, bool) {
	if p.EffectiveDate.IsZero() || p.ExpirationDate.IsZero() {
		return 0, false
	}
	start := truncateDay(p.EffectiveDate)
	end := truncateDay(p.ExpirationDate)
	return int(end.Sub(start).Hours() / 24), true
}

// Basis is the amount down-payment percentages are applied to.
func (p *Policy) Basis() int64 {
	return p.Premium + p.Taxes
}

// Quote owns an ordered set of policies evaluated together.
type Quote struct {
	ID            string    `json:"id"`
	State         string    `json:"state,omitempty"`
	Renewal       bool      `json:"renewal"`
	EffectiveDate time.Time `json:"effectiveDate"`
	Policies      []Policy  `json:"policies"`
}

// TotalPremium sums premium and taxes over every policy.
func (q *Quote) TotalPremium() int64 {
	var total int64
	for i := range q.Policies {
		total += q.Policies[i].Basis()
	}
	return total
}

// StartDate returns the quote effective date, falling back to the earliest
// policy effective date. The zero time means no date is known.
func (q *Quote) StartDate() time.Time {
	if !q.EffectiveDate.IsZero() {
		return q.EffectiveDate
	}
	var start time.Time
	for i := range q.Policies {
		eff := q.Policies[i].EffectiveDate
		if eff.IsZero() {
			continue
		}
		if start.IsZero() || eff.Before(start) {
			start = eff
		}
	}
	return start
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
