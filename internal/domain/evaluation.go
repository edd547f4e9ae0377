package domain

import (
	"time"
)

// QuoteResult holds the fields computed for a quote from its rule table.
// Monetary fields use the same minor-unit convention as Policy.Premium.
type QuoteResult struct {
	DownPayment    int64 `json:"downPayment"`
	MinDownPayment int64 `json:"minDownPayment"`

	InstallmentCount    int `json:"installmentCount"`
	InstallmentCountMin int `json:"installmentCountMin"`
	InstallmentCountMax int `json:"installmentCountMax"`

	DaysToFirstDueDate   int        `json:"daysBetweenEffectiveDateAndFirstDueDate"`
	MonthsToFirstDueDate int        `json:"monthsBetweenEffectiveDateAndFirstDueDate"`
	MaxFirstDueDate      *time.Time `json:"maxFirstDueDate,omitempty"`

	OverrideMep bool `json:"overrideMep"`

	// Policies explains which rule priced each policy, in quote order.
	Policies []PolicyContribution `json:"policies"`

	// MatchedRules lists, in table order, the rules that fed the bounds.
	MatchedRules []string `json:"matchedRules"`
}

// PolicyContribution is one policy's share of the quote down payment.
type PolicyContribution struct {
	PolicyID       string `json:"policyId"`
	Rule           string `json:"rule"`
	Fallback       bool   `json:"fallback,omitempty"`
	Basis          int64  `json:"basis"`
	DownPayment    int64  `json:"downPayment"`
	MinDownPayment int64  `json:"minDownPayment"`
}

// Evaluation is the persisted record of one quote evaluation.
type Evaluation struct {
	ID           string             `json:"id"`
	TenantID     string             `json:"tenantId"`
	QuoteID      string             `json:"quoteId"`
	TableID      string             `json:"tableId"`
	TableVersion string             `json:"tableVersion"`
	Quote        *Quote             `json:"quote,omitempty"`
	Result       *QuoteResult       `json:"result"`
	Timestamp    time.Time          `json:"timestamp"`
	Metadata     EvaluationMetadata `json:"metadata"`
}

// EvaluationMetadata contains processing information.
type EvaluationMetadata struct {
	TraceID        string `json:"traceId"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// InlineTableID identifies evaluations run against a table supplied in the request.
const InlineTableID = "inline"
