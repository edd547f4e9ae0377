package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/downpay/internal/domain"
)

var operators = map[domain.Comparison]string{
	domain.ComparisonEqualTo:            "==",
	domain.ComparisonNotEqualTo:         "!=",
	domain.ComparisonGreaterThan:        ">",
	domain.ComparisonGreaterThanOrEqual: ">=",
	domain.ComparisonLessThan:           "<",
	domain.ComparisonLessThanOrEqual:    "<=",
}

func ordering(c domain.Comparison) bool {
	return c != domain.ComparisonEqualTo && c != domain.ComparisonNotEqualTo
}

type programKey struct {
	kind       Kind
	comparison domain.Comparison
}

// comparator holds one compiled CEL program per fact kind and operator.
// Programs are stateless and shared by every requirement.
type comparator struct {
	programs map[programKey]cel.Program
}

func newComparator() (*comparator, error) {
	celTypes := map[Kind]*cel.Type{
		KindNumber: cel.IntType,
		KindBool:   cel.BoolType,
		KindString: cel.StringType,
	}

	c := &comparator{programs: make(map[programKey]cel.Program)}

	for kind, celType := range celTypes {
		env, err := cel.NewEnv(
			cel.Variable("fact", celType),
			cel.Variable("condition", celType),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create CEL environment: %w", err)
		}

		for comparison, op := range operators {
			if ordering(comparison) && kind != KindNumber {
				continue
			}

			ast, issues := env.Compile("fact " + op + " condition")
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("failed to compile %s comparison: %w", comparison, issues.Err())
			}

			program, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("failed to create program for %s: %w", comparison, err)
			}
			c.programs[programKey{kind: kind, comparison: comparison}] = program
		}
	}

	return c, nil
}

// compiledRequirement is a requirement with its condition normalized and
// its comparison bound to a CEL program.
type compiledRequirement struct {
	criteria  domain.Criteria
	scope     Scope
	condition Value
	program   cel.Program
}

func (c *comparator) compile(req domain.Requirement) (*compiledRequirement, error) {
	scope, err := ScopeOf(req.Criteria)
	if err != nil {
		return nil, err
	}

	if _, ok := operators[req.Comparison]; !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownComparison, string(req.Comparison))
	}

	condition, err := NormalizeCondition(req.Criteria, req.Condition)
	if err != nil {
		return nil, err
	}

	program, ok := c.programs[programKey{kind: condition.Kind, comparison: req.Comparison}]
	if !ok {
		return nil, &TypeMismatchError{
			Criteria:   req.Criteria,
			Comparison: req.Comparison,
			Want:       condition.Kind,
			Condition:  req.Condition,
		}
	}

	return &compiledRequirement{
		criteria:  req.Criteria,
		scope:     scope,
		condition: condition,
		program:   program,
	}, nil
}

// matches evaluates the requirement against the fact read from t.
func (r *compiledRequirement) matches(t target) (bool, error) {
	fact, err := lookup(r.criteria, t)
	if err != nil {
		return false, err
	}

	lhs, rhs := operands(fact, r.condition)
	out, _, err := r.program.Eval(map[string]any{
		"fact":      lhs,
		"condition": rhs,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating %s: %w", r.criteria, err)
	}

	matched, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("evaluating %s: expected bool result, got %s", r.criteria, out.Type().TypeName())
	}
	return bool(matched), nil
}
