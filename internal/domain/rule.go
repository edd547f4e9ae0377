package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Priority orders competing rules. Higher priorities win.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the ordinal of the priority, or -1 when unrecognized.
// An empty priority ranks as low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow, "":
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return -1
	}
}

// Criteria names the fact a requirement inspects.
type Criteria string

// Quote-level criteria
const (
	CriteriaTotalPremium Criteria = "total_premium"
	CriteriaRenewal      Criteria = "renewal"
	CriteriaState        Criteria = "state"
)

// Policy-level criteria
const (
	CriteriaCoverageType           Criteria = "coverage_type"
	CriteriaShortRate              Criteria = "short_rate"
	CriteriaMinEarnedPercentage    Criteria = "minimum_earned_percentage"
	CriteriaFilings                Criteria = "filings"
	CriteriaPolicyDuration         Criteria = "policy_duration"
	CriteriaAuditable              Criteria = "auditable"
	CriteriaAdditionalDaysToCancel Criteria = "additional_days_to_cancel"
	CriteriaPolicyPremium          Criteria = "policy_premium"
)

// Comparison is the operator applied between a fact and a condition.
type Comparison string

const (
	ComparisonEqualTo            Comparison = "equal_to"
	ComparisonNotEqualTo         Comparison = "not_equal_to"
	ComparisonGreaterThan        Comparison = "greater_than"
	ComparisonGreaterThanOrEqual Comparison = "greater_than_or_equal_to"
	ComparisonLessThan           Comparison = "less_than"
	ComparisonLessThanOrEqual    Comparison = "less_than_or_equal_to"
)

// Requirement is a single criteria/comparison/condition triple.
// Condition holds the raw literal as configured: a string, number or bool.
type Requirement struct {
	Criteria   Criteria   `json:"criteria"`
	Comparison Comparison `json:"comparison"`
	Condition  any        `json:"condition"`
}

// DownPaymentRule carries down-payment percentages and installment bounds
// that apply to the targets matched by all of its requirements.
// A rule without requirements matches unconditionally.
type DownPaymentRule struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Priority Priority `json:"priority"`

	DefaultDownPaymentPercentage decimal.Decimal `json:"defaultDownPaymentPercentage"`
	MinDownPaymentPercentage     decimal.Decimal `json:"minDownPaymentPercentage"`

	InstallmentCountMin     NullInt `json:"installmentCountMin"`
	InstallmentCountMax     NullInt `json:"installmentCountMax"`
	InstallmentCountDefault NullInt `json:"installmentCountDefault"`

	OverrideMep bool `json:"overrideMep"`

	DaysToFirstDueDate   NullInt `json:"daysBetweenEffectiveDateAndFirstDueDate"`
	MonthsToFirstDueDate NullInt `json:"monthsBetweenEffectiveDateAndFirstDueDate"`

	Requirements []Requirement `json:"requirements,omitempty"`
}

// Label identifies the rule in results and logs.
func (r *DownPaymentRule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// RuleTable is an ordered, versioned collection of down-payment rules.
type RuleTable struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenantId,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version"`
	Rules       []DownPaymentRule `json:"rules"`
	Enabled     bool              `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// NullInt is an optional integer rule field.
// It decodes from a JSON number, a numeric string, or null.
type NullInt struct {
	Value int
	Valid bool
}

// Int returns a set NullInt.
func Int(v int) NullInt {
	return NullInt{Value: v, Valid: true}
}

// MarshalJSON encodes unset values as null.
func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// UnmarshalJSON accepts 7, "7" and null.
func (n *NullInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = NullInt{}
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return fmt.Errorf("integer expected, got %v", v)
		}
		*n = Int(int(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			*n = NullInt{}
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("integer expected, got %q", v)
		}
		*n = Int(i)
	default:
		return fmt.Errorf("integer expected, got %s", string(data))
	}
	return nil
}
