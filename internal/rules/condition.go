package rules

import (
	"encoding/json"
	"strings"

	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/shopspring/decimal"
)

// Value is a typed fact or normalized condition.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Bool bool
	Str  string
}

func numberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }
func boolValue(b bool) Value              { return Value{Kind: KindBool, Bool: b} }
func stringValue(s string) Value          { return Value{Kind: KindString, Str: s} }

// operands returns the CEL inputs comparing fact against condition.
// Numbers are reduced to the sign of their exact decimal comparison against
// zero, so equality holds beyond float64 precision.
func operands(fact, condition Value) (any, any) {
	switch fact.Kind {
	case KindNumber:
		return int64(fact.Num.Cmp(condition.Num)), int64(0)
	case KindBool:
		return fact.Bool, condition.Bool
	default:
		return fact.Str, condition.Str
	}
}

// NormalizeCondition converts a configured condition literal to the type of
// the fact named by c. Numeric strings become numbers and "true"/"false"
// become booleans.
func NormalizeCondition(c domain.Criteria, condition any) (Value, error) {
	kind, err := KindOf(c)
	if err != nil {
		return Value{}, err
	}

	v, ok := normalize(kind, condition)
	if !ok {
		return Value{}, &TypeMismatchError{Criteria: c, Want: kind, Condition: condition}
	}
	return v, nil
}

func normalize(kind Kind, condition any) (Value, bool) {
	switch kind {
	case KindNumber:
		d, ok := toDecimal(condition)
		return numberValue(d), ok
	case KindBool:
		switch c := condition.(type) {
		case bool:
			return boolValue(c), true
		case string:
			s := strings.TrimSpace(c)
			if strings.EqualFold(s, "true") {
				return boolValue(true), true
			}
			if strings.EqualFold(s, "false") {
				return boolValue(false), true
			}
		}
	case KindString:
		if s, ok := condition.(string); ok {
			return stringValue(s), true
		}
	}
	return Value{}, false
}

func toDecimal(condition any) (decimal.Decimal, bool) {
	switch c := condition.(type) {
	case decimal.Decimal:
		return c, true
	case int:
		return decimal.NewFromInt(int64(c)), true
	case int32:
		return decimal.NewFromInt32(c), true
	case int64:
		return decimal.NewFromInt(c), true
	case float32:
		return decimal.NewFromFloat32(c), true
	case float64:
		return decimal.NewFromFloat(c), true
	case json.Number:
		d, err := decimal.NewFromString(c.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(c))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
