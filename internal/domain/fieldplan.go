package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind describes the shape of the value input belonging to one
// field/operator combination.
type ValueKind string

const (
	// ValueScalar is a single typed input.
	ValueScalar ValueKind = "scalar"
	// ValueRange is a pair of typed inputs (from, to).
	ValueRange ValueKind = "range"
	// ValueChoice is a single selection from an enumerated choice set.
	ValueChoice ValueKind = "choice"
	// ValueMultiChoice is a multi-selection from an enumerated choice set.
	ValueMultiChoice ValueKind = "multichoice"
	// ValueBool is a yes/no toggle.
	ValueBool ValueKind = "bool"
)

// ScalarKind is the base type a scalar (or range bound) parses as.
type ScalarKind string

const (
	ScalarString   ScalarKind = "string"
	ScalarInteger  ScalarKind = "integer"
	ScalarDecimal  ScalarKind = "decimal"
	ScalarFloat    ScalarKind = "float"
	ScalarDate     ScalarKind = "date"
	ScalarTime     ScalarKind = "time"
	ScalarDateTime ScalarKind = "datetime"
	ScalarBool     ScalarKind = "bool"
)

// ValueSpec tells the caller what input widget to build and how submitted
// raw values parse. This package never renders UI; it only decides shape.
type ValueSpec struct {
	Kind    ValueKind  `json:"kind"`
	Scalar  ScalarKind `json:"scalar,omitempty"`
	Choices []Choice   `json:"choices,omitempty"`
}

// ValueInput returns the value shape for a field and one of its legal
// operators. Requesting a shape for an operator outside LegalOperators is a
// caller contract violation and panics: the operator choices offered to a
// user are always derived from LegalOperators, so this cannot arise from
// user interaction.
func ValueInput(f FieldDescriptor, op Operator) ValueSpec {
	if !Legal(f, op) {
		panic(fmt.Sprintf("searchkit: operator %q is not legal for field %q of kind %q", op, f.Name, f.Kind))
	}
	switch {
	case op == OpIsNull:
		return ValueSpec{Kind: ValueBool, Scalar: ScalarBool}
	case op == OpRange:
		return ValueSpec{Kind: ValueRange, Scalar: scalarKind(f.Kind)}
	case op == OpIn:
		return ValueSpec{Kind: ValueMultiChoice, Scalar: scalarKind(f.Kind), Choices: f.Choices}
	case op == OpExact && f.HasChoices():
		return ValueSpec{Kind: ValueChoice, Scalar: scalarKind(f.Kind), Choices: f.Choices}
	case f.Kind == FieldBoolean:
		return ValueSpec{Kind: ValueBool, Scalar: ScalarBool}
	default:
		return ValueSpec{Kind: ValueScalar, Scalar: scalarKind(f.Kind)}
	}
}

func scalarKind(k FieldKind) ScalarKind {
	switch k {
	case FieldBoolean:
		return ScalarBool
	case FieldInteger:
		return ScalarInteger
	case FieldDecimal:
		return ScalarDecimal
	case FieldFloat:
		return ScalarFloat
	case FieldDate:
		return ScalarDate
	case FieldTime:
		return ScalarTime
	case FieldDateTime:
		return ScalarDateTime
	default:
		return ScalarString
	}
}

// Form input uses the short layout; rules reloaded from JSON storage carry
// dates re-serialized as RFC3339.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

var timeLayouts = []string{"15:04:05", "15:04"}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseScalar parses one raw form value into its typed representation.
// Integers become int64, floats float64, decimals stay as validated
// strings (to avoid binary drift), dates and datetimes become time.Time,
// times of day become normalized "15:04:05" strings.
func ParseScalar(kind ScalarKind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("value is required")
	}
	switch kind {
	case ScalarString:
		return raw, nil
	case ScalarInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("enter a whole number")
		}
		return n, nil
	case ScalarFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("enter a number")
		}
		return f, nil
	case ScalarDecimal:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("enter a decimal number")
		}
		return raw, nil
	case ScalarBool:
		switch strings.ToLower(raw) {
		case "true", "on", "1", "yes":
			return true, nil
		case "false", "off", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("enter yes or no")
	case ScalarDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("enter a date as YYYY-MM-DD")
	case ScalarTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format("15:04:05"), nil
			}
		}
		return nil, fmt.Errorf("enter a time as HH:MM or HH:MM:SS")
	case ScalarDateTime:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("enter a datetime as YYYY-MM-DD HH:MM")
	}
	return nil, fmt.Errorf("unsupported value type %q", kind)
}

// CompareScalars orders two parsed scalar values of the same kind. It
// returns a negative number, zero or a positive number in the manner of
// strings.Compare. Used to detect reversed range bounds.
func CompareScalars(kind ScalarKind, a, b any) (int, error) {
	switch kind {
	case ScalarInteger:
		av, aok := a.(int64)
		bv, bok := b.(int64)
		if !aok || !bok {
			break
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case ScalarFloat:
		av, aok := a.(float64)
		bv, bok := b.(float64)
		if !aok || !bok {
			break
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case ScalarDecimal:
		av, aerr := strconv.ParseFloat(fmt.Sprint(a), 64)
		bv, berr := strconv.ParseFloat(fmt.Sprint(b), 64)
		if aerr != nil || berr != nil {
			break
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case ScalarDate, ScalarDateTime:
		av, aok := a.(time.Time)
		bv, bok := b.(time.Time)
		if !aok || !bok {
			break
		}
		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		}
		return 0, nil
	case ScalarTime, ScalarString:
		av, aok := a.(string)
		bv, bok := b.(string)
		if !aok || !bok {
			break
		}
		return strings.Compare(av, bv), nil
	}
	return 0, fmt.Errorf("values are not comparable as %q", kind)
}
