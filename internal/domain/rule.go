package domain

import (
	"fmt"
	"time"
)

// LogicalOperator combines a filter rule with the accumulated predicate of
// the rules before it.
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "and"
	LogicOr  LogicalOperator = "or"
	LogicXor LogicalOperator = "xor"
)

// Known reports whether l is a supported combinator.
func (l LogicalOperator) Known() bool {
	switch l {
	case LogicAnd, LogicOr, LogicXor:
		return true
	}
	return false
}

// FilterRule is one atomic comparison of a search: a field path, an
// operator, the comparison value, an optional negation and the combinator
// linking it to the preceding rules. The combinator of the first rule is
// ignored. Rules serialize to JSON for storage.
type FilterRule struct {
	FieldPath string          `json:"field"`
	Operator  Operator        `json:"operator"`
	Value     any             `json:"value,omitempty"`
	Negate    bool            `json:"negate,omitempty"`
	Logic     LogicalOperator `json:"logic,omitempty"`
}

// CoerceValue normalizes a rule value against the field it filters. Values
// round-tripped through JSON storage lose their Go types (numbers decay to
// float64, timestamps to strings); coercion restores them so a reloaded
// rule compiles to the same predicate as a freshly built one.
func CoerceValue(f FieldDescriptor, op Operator, value any) (any, error) {
	spec := ValueInput(f, op)
	switch spec.Kind {
	case ValueBool:
		return coerceScalar(ScalarBool, value)
	case ValueRange:
		pair, err := asPair(value)
		if err != nil {
			return nil, err
		}
		from, err := coerceScalar(spec.Scalar, pair[0])
		if err != nil {
			return nil, fmt.Errorf("range start: %w", err)
		}
		to, err := coerceScalar(spec.Scalar, pair[1])
		if err != nil {
			return nil, fmt.Errorf("range end: %w", err)
		}
		if cmp, err := CompareScalars(spec.Scalar, from, to); err == nil && cmp > 0 {
			return nil, fmt.Errorf("range start must not exceed range end")
		}
		return []any{from, to}, nil
	case ValueMultiChoice:
		list, err := asList(value)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("select at least one value")
		}
		result := make([]any, len(list))
		for i, item := range list {
			coerced, err := coerceScalar(spec.Scalar, item)
			if err != nil {
				return nil, err
			}
			if !inChoices(spec.Choices, coerced) {
				return nil, fmt.Errorf("%v is not one of the available choices", coerced)
			}
			result[i] = coerced
		}
		return result, nil
	case ValueChoice:
		coerced, err := coerceScalar(spec.Scalar, value)
		if err != nil {
			return nil, err
		}
		if !inChoices(spec.Choices, coerced) {
			return nil, fmt.Errorf("%v is not one of the available choices", coerced)
		}
		return coerced, nil
	default:
		return coerceScalar(spec.Scalar, value)
	}
}

func coerceScalar(kind ScalarKind, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("value is required")
	case string:
		return ParseScalar(kind, v)
	case bool:
		if kind != ScalarBool {
			return nil, fmt.Errorf("unexpected boolean value")
		}
		return v, nil
	case int64:
		switch kind {
		case ScalarInteger:
			return v, nil
		case ScalarFloat:
			return float64(v), nil
		case ScalarDecimal:
			return fmt.Sprint(v), nil
		}
	case int:
		return coerceScalar(kind, int64(v))
	case float64:
		switch kind {
		case ScalarInteger:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("enter a whole number")
			}
			return int64(v), nil
		case ScalarFloat:
			return v, nil
		case ScalarDecimal:
			return fmt.Sprint(v), nil
		}
	case time.Time:
		switch kind {
		case ScalarDate, ScalarDateTime:
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot interpret %v as %s", value, kind)
}

func asPair(value any) ([2]any, error) {
	switch v := value.(type) {
	case []any:
		if len(v) == 2 {
			return [2]any{v[0], v[1]}, nil
		}
	case [2]any:
		return v, nil
	}
	return [2]any{}, fmt.Errorf("a range needs exactly two values")
}

func asList(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return list, nil
	}
	return nil, fmt.Errorf("expected a list of values")
}

func inChoices(choices []Choice, value any) bool {
	s := fmt.Sprint(value)
	for _, c := range choices {
		if c.Value == s {
			return true
		}
	}
	return false
}

// ValidateRule checks one rule against the relation graph of its root
// model: the field path must resolve, the operator must be legal for the
// resolved field, the value must match the operator's shape and the
// combinator must be known. The first rule of a search carries no
// combinator.
func ValidateRule(tree *ModelTree, rule FilterRule, first bool) error {
	field, _, err := tree.ResolveField(rule.FieldPath)
	if err != nil {
		return err
	}
	if !rule.Operator.Known() {
		return fmt.Errorf("unknown operator %q", rule.Operator)
	}
	if !Legal(field, rule.Operator) {
		return fmt.Errorf("operator %q is not legal for field %q", rule.Operator, rule.FieldPath)
	}
	if _, err := CoerceValue(field, rule.Operator, rule.Value); err != nil {
		return fmt.Errorf("field %q: %w", rule.FieldPath, err)
	}
	if first {
		// The combinator of the first rule is ignored; there is nothing
		// to combine with.
		return nil
	}
	if rule.Logic != "" && !rule.Logic.Known() {
		return fmt.Errorf("unknown combinator %q", rule.Logic)
	}
	return nil
}

// ValidateRules validates an ordered rule list as a whole.
func ValidateRules(tree *ModelTree, rules []FilterRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("a search needs at least one rule")
	}
	for i, rule := range rules {
		if err := ValidateRule(tree, rule, i == 0); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return nil
}
