package exemption

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
)

// Facts are the line-item attributes a condition predicate can reference.
type Facts struct {
	Amount      decimal.Decimal
	Quantity    decimal.Decimal
	ServiceType string
	TaxCategory string
	TaxType     string
}

func (f Facts) numeric(field string) (decimal.Decimal, bool) {
	switch field {
	case "amount", "base_amount":
		return f.Amount, true
	case "quantity":
		return f.Quantity, true
	default:
		return decimal.Zero, false
	}
}

func (f Facts) text(field string) (string, bool) {
	switch field {
	case "service_type":
		return f.ServiceType, true
	case "tax_category":
		return f.TaxCategory, true
	case "tax_type":
		return f.TaxType, true
	default:
		return "", false
	}
}

// EvaluateConditions interprets the structured predicate list on a
// conditional exemption. All conditions must pass. An empty list passes;
// an unknown field or operator fails closed so malformed data can never
// widen an exemption.
func EvaluateConditions(raw json.RawMessage, facts Facts) (bool, error) {
	if len(raw) == 0 {
		return true, nil
	}
	var conds []domain.ExemptionCondition
	if err := json.Unmarshal(raw, &conds); err != nil {
		return false, fmt.Errorf("decoding exemption conditions: %w", err)
	}
	for _, c := range conds {
		ok, err := evalCondition(c, facts)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalCondition(c domain.ExemptionCondition, facts Facts) (bool, error) {
	if n, ok := facts.numeric(c.Field); ok {
		return evalNumeric(c, n)
	}
	if s, ok := facts.text(c.Field); ok {
		return evalText(c, s)
	}
	return false, fmt.Errorf("unknown condition field %q", c.Field)
}

func evalNumeric(c domain.ExemptionCondition, have decimal.Decimal) (bool, error) {
	switch c.Op {
	case "between":
		var bounds [2]decimal.Decimal
		if err := json.Unmarshal(c.Values, &bounds); err != nil {
			return false, fmt.Errorf("condition %q: between needs two numeric bounds: %w", c.Field, err)
		}
		return have.GreaterThanOrEqual(bounds[0]) && have.LessThanOrEqual(bounds[1]), nil
	case "in":
		var set []decimal.Decimal
		if err := json.Unmarshal(c.Values, &set); err != nil {
			return false, fmt.Errorf("condition %q: decoding set: %w", c.Field, err)
		}
		for _, v := range set {
			if have.Equal(v) {
				return true, nil
			}
		}
		return false, nil
	}

	var want decimal.Decimal
	if err := json.Unmarshal(c.Value, &want); err != nil {
		return false, fmt.Errorf("condition %q: decoding value: %w", c.Field, err)
	}
	switch c.Op {
	case "eq":
		return have.Equal(want), nil
	case "ne":
		return !have.Equal(want), nil
	case "gt":
		return have.GreaterThan(want), nil
	case "gte":
		return have.GreaterThanOrEqual(want), nil
	case "lt":
		return have.LessThan(want), nil
	case "lte":
		return have.LessThanOrEqual(want), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", c.Op)
	}
}

func evalText(c domain.ExemptionCondition, have string) (bool, error) {
	switch c.Op {
	case "in":
		var set []string
		if err := json.Unmarshal(c.Values, &set); err != nil {
			return false, fmt.Errorf("condition %q: decoding set: %w", c.Field, err)
		}
		for _, v := range set {
			if v == have {
				return true, nil
			}
		}
		return false, nil
	}

	var want string
	if err := json.Unmarshal(c.Value, &want); err != nil {
		return false, fmt.Errorf("condition %q: decoding value: %w", c.Field, err)
	}
	switch c.Op {
	case "eq":
		return have == want, nil
	case "ne":
		return have != want, nil
	default:
		return false, fmt.Errorf("operator %q not valid for text field %q", c.Op, c.Field)
	}
}
