package rules

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/downpay/internal/domain"
)

var (
	// ErrUnknownCriteria is returned when a requirement names a criteria
	// outside the scope table.
	ErrUnknownCriteria = errors.New("unknown criteria")

	// ErrUnknownComparison is returned for an unsupported comparison operator.
	ErrUnknownComparison = errors.New("unknown comparison")

	// ErrUnknownPriority is returned for a priority other than low, medium or high.
	ErrUnknownPriority = errors.New("unknown priority")

	// ErrMissingFact is returned when a requirement's fact is absent on its target.
	ErrMissingFact = errors.New("missing fact")

	// ErrTypeMismatch is returned when a condition cannot be normalized to its fact's type.
	ErrTypeMismatch = errors.New("condition type mismatch")

	// ErrUnresolvedPolicy is returned when a policy matches no rule and the
	// table has no unconditional rule.
	ErrUnresolvedPolicy = errors.New("unresolved policy")

	// ErrMixedScope is returned for a rule combining quote and policy criteria.
	ErrMixedScope = errors.New("rule mixes quote and policy criteria")

	// ErrInvalidRule is returned for rules with out-of-range settings.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrEmptyQuote is returned when a quote has no policies.
	ErrEmptyQuote = errors.New("quote has no policies")
)

// UnknownCriteriaError names the unrecognized criteria.
type UnknownCriteriaError struct {
	Criteria domain.Criteria
}

func (e *UnknownCriteriaError) Error() string {
	return fmt.Sprintf("unknown criteria %q", string(e.Criteria))
}

func (e *UnknownCriteriaError) Unwrap() error { return ErrUnknownCriteria }

// MissingFactError identifies the target lacking a fact.
// PolicyID is empty for quote-level facts.
type MissingFactError struct {
	Criteria domain.Criteria
	PolicyID string
}

func (e *MissingFactError) Error() string {
	if e.PolicyID == "" {
		return fmt.Sprintf("quote has no value for %s", e.Criteria)
	}
	return fmt.Sprintf("policy %s has no value for %s", e.PolicyID, e.Criteria)
}

func (e *MissingFactError) Unwrap() error { return ErrMissingFact }

// TypeMismatchError reports a condition that does not fit its fact type.
type TypeMismatchError struct {
	Criteria   domain.Criteria
	Comparison domain.Comparison
	Want       Kind
	Condition  any
}

func (e *TypeMismatchError) Error() string {
	if e.Comparison != "" {
		return fmt.Sprintf("%s does not support %s on %s facts", e.Criteria, e.Comparison, e.Want)
	}
	return fmt.Sprintf("condition %v (%T) for %s is not a %s", e.Condition, e.Condition, e.Criteria, e.Want)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// UnresolvedPolicyError identifies the policy no rule could price.
type UnresolvedPolicyError struct {
	PolicyID string
	TableID  string
}

func (e *UnresolvedPolicyError) Error() string {
	return fmt.Sprintf("policy %s matches no rule in table %s and the table has no unconditional rule", e.PolicyID, e.TableID)
}

func (e *UnresolvedPolicyError) Unwrap() error { return ErrUnresolvedPolicy }
