// Package forms reconstructs the dynamic search-building form from flat
// submitted key/value data. Every row is rebuilt from whatever partial data
// is available; malformed input never fails construction, it only marks
// the row invalid with inline errors so the form can be re-rendered.
package forms

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/thomst/searchkit/internal/domain"
)

// RowState is the progressive-disclosure stage a form row has reached.
type RowState string

const (
	// StateEmpty renders only the field path choices.
	StateEmpty RowState = "empty"
	// StateFieldChosen adds the operator choices for the chosen field.
	StateFieldChosen RowState = "field_chosen"
	// StateOperatorChosen adds the value input for the chosen operator.
	StateOperatorChosen RowState = "operator_chosen"
	// StateComplete has a well-typed value for field and operator.
	StateComplete RowState = "complete"
	// StateInvalid failed validation at some stage; later stages render
	// with default selections, the row stays unsubmittable.
	StateInvalid RowState = "invalid"
)

// Row is one filter rule being edited. It is rebuilt on every round trip
// from the submitted data addressed by its composite prefix.
type Row struct {
	Prefix string
	Index  int
	First  bool
	State  RowState
	Errors map[string][]string

	FieldChoices    []domain.LookupGroup
	FieldPath       string
	Field           *domain.FieldDescriptor
	OperatorChoices []domain.Choice
	Operator        domain.Operator
	ValueSpec       *domain.ValueSpec
	Value           any
	RawValues       map[string][]string
	Negate          bool
	Logic           domain.LogicalOperator

	tree *domain.ModelTree
}

// NewRow reconstructs one row from submitted form data. A nil data map
// yields a fresh unbound row offering only the field choices.
func NewRow(tree *domain.ModelTree, prefix string, index int, first bool, data url.Values) *Row {
	r := &Row{
		Prefix:       fmt.Sprintf("%s-%d", prefix, index),
		Index:        index,
		First:        first,
		State:        StateEmpty,
		Errors:       make(map[string][]string),
		RawValues:    make(map[string][]string),
		FieldChoices: tree.LookupChoices(),
		tree:         tree,
	}
	if data == nil {
		return r
	}
	r.parseLogical(data)

	rawField := strings.TrimSpace(data.Get(r.key("field")))
	if rawField == "" {
		if data.Has(r.key("field")) {
			r.fail("field", "choose a field")
		}
		return r
	}
	r.RawValues["field"] = []string{rawField}
	field, _, err := tree.ResolveField(rawField)
	if err != nil {
		// Replace the invalid choice by the first available one so the
		// row stays renderable; the row is still reported invalid.
		r.fail("field", "select a valid field")
		rawField = r.firstFieldChoice()
		if rawField == "" {
			return r
		}
		field, _, err = tree.ResolveField(rawField)
		if err != nil {
			return r
		}
	} else if r.State == StateEmpty {
		r.State = StateFieldChosen
	}
	r.FieldPath = rawField
	r.Field = &field
	r.OperatorChoices = operatorChoices(field)

	rawOp := strings.TrimSpace(data.Get(r.key("operator")))
	if rawOp == "" {
		return r
	}
	r.RawValues["operator"] = []string{rawOp}
	op := domain.Operator(rawOp)
	if !op.Known() || !domain.Legal(field, op) {
		r.fail("operator", "select a valid operator")
		op = domain.Operator(r.OperatorChoices[0].Value)
	} else if r.State == StateFieldChosen {
		r.State = StateOperatorChosen
	}
	r.Operator = op
	spec := domain.ValueInput(field, op)
	r.ValueSpec = &spec

	if !r.valueSubmitted(data) {
		return r
	}
	value, err := r.parseValue(data)
	if err != nil {
		r.fail("value", err.Error())
		return r
	}
	r.Value = value
	if r.State == StateOperatorChosen && len(r.Errors) == 0 {
		r.State = StateComplete
	}
	return r
}

// NewRowFromRule rebuilds a complete row from a stored filter rule, for
// re-editing a saved search.
func NewRowFromRule(tree *domain.ModelTree, prefix string, index int, first bool, rule domain.FilterRule) (*Row, error) {
	data := url.Values{}
	rowPrefix := fmt.Sprintf("%s-%d", prefix, index)
	data.Set(rowPrefix+"-field", rule.FieldPath)
	data.Set(rowPrefix+"-operator", string(rule.Operator))
	if rule.Negate {
		data.Set(rowPrefix+"-negate", "on")
	}
	if !first && rule.Logic != "" {
		data.Set(rowPrefix+"-logic", string(rule.Logic))
	}
	field, _, err := tree.ResolveField(rule.FieldPath)
	if err != nil {
		return nil, err
	}
	if err := encodeValue(data, rowPrefix, field, rule.Operator, rule.Value); err != nil {
		return nil, err
	}
	return NewRow(tree, prefix, index, first, data), nil
}

// Valid reports whether the row may contribute a filter rule.
func (r *Row) Valid() bool {
	return r.State == StateComplete && len(r.Errors) == 0
}

// Rule extracts the filter rule of a complete row.
func (r *Row) Rule() (domain.FilterRule, error) {
	if !r.Valid() {
		return domain.FilterRule{}, fmt.Errorf("row %d is incomplete", r.Index)
	}
	rule := domain.FilterRule{
		FieldPath: r.FieldPath,
		Operator:  r.Operator,
		Value:     r.Value,
		Negate:    r.Negate,
	}
	if !r.First {
		rule.Logic = r.Logic
	}
	return rule, nil
}

// Extend advances a partially filled row one stage, selecting the first
// operator choice by default. This powers the reload cycle: after the user
// commits a field, the next rendering already offers operator and value.
func (r *Row) Extend() {
	if r.State != StateFieldChosen || r.Field == nil {
		return
	}
	r.Operator = domain.Operator(r.OperatorChoices[0].Value)
	spec := domain.ValueInput(*r.Field, r.Operator)
	r.ValueSpec = &spec
	r.State = StateOperatorChosen
}

func (r *Row) key(name string) string {
	return r.Prefix + "-" + name
}

func (r *Row) fail(field, message string) {
	r.Errors[field] = append(r.Errors[field], message)
	r.State = StateInvalid
}

func (r *Row) firstFieldChoice() string {
	for _, group := range r.FieldChoices {
		if len(group.Choices) > 0 {
			return group.Choices[0].Value
		}
	}
	return ""
}

func (r *Row) parseLogical(data url.Values) {
	if data.Has(r.key("negate")) {
		raw := data.Get(r.key("negate"))
		r.Negate = raw == "on" || raw == "true" || raw == "1"
		if r.Negate {
			r.RawValues["negate"] = []string{"on"}
		}
	}
	if r.First {
		return
	}
	r.Logic = domain.LogicAnd
	raw := strings.TrimSpace(data.Get(r.key("logic")))
	if raw == "" {
		return
	}
	r.RawValues["logic"] = []string{raw}
	logic := domain.LogicalOperator(raw)
	if !logic.Known() {
		r.fail("logic", "select a valid combinator")
		return
	}
	r.Logic = logic
}

func (r *Row) valueSubmitted(data url.Values) bool {
	if r.ValueSpec.Kind == domain.ValueRange {
		return data.Has(r.key("value_0")) || data.Has(r.key("value_1"))
	}
	return data.Has(r.key("value"))
}

func (r *Row) parseValue(data url.Values) (any, error) {
	spec := *r.ValueSpec
	switch spec.Kind {
	case domain.ValueRange:
		raw0 := data.Get(r.key("value_0"))
		raw1 := data.Get(r.key("value_1"))
		r.RawValues["value_0"] = []string{raw0}
		r.RawValues["value_1"] = []string{raw1}
		from, err := domain.ParseScalar(spec.Scalar, raw0)
		if err != nil {
			return nil, fmt.Errorf("range start: %v", err)
		}
		to, err := domain.ParseScalar(spec.Scalar, raw1)
		if err != nil {
			return nil, fmt.Errorf("range end: %v", err)
		}
		if cmp, err := domain.CompareScalars(spec.Scalar, from, to); err == nil && cmp > 0 {
			return nil, fmt.Errorf("range start must not exceed range end")
		}
		return []any{from, to}, nil
	case domain.ValueMultiChoice:
		raw := data[r.key("value")]
		r.RawValues["value"] = raw
		return domain.CoerceValue(*r.Field, r.Operator, raw)
	default:
		raw := data.Get(r.key("value"))
		r.RawValues["value"] = []string{raw}
		return domain.CoerceValue(*r.Field, r.Operator, raw)
	}
}

func operatorChoices(field domain.FieldDescriptor) []domain.Choice {
	ops := domain.LegalOperators(field)
	choices := make([]domain.Choice, len(ops))
	for i, op := range ops {
		choices[i] = domain.Choice{Value: string(op), Label: op.Description()}
	}
	return choices
}

// encodeValue writes a typed rule value back into flat form data.
func encodeValue(data url.Values, rowPrefix string, field domain.FieldDescriptor, op domain.Operator, value any) error {
	spec := domain.ValueInput(field, op)
	switch spec.Kind {
	case domain.ValueRange:
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return fmt.Errorf("a range needs exactly two values")
		}
		data.Set(rowPrefix+"-value_0", encodeScalar(pair[0]))
		data.Set(rowPrefix+"-value_1", encodeScalar(pair[1]))
	case domain.ValueMultiChoice:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected a list of values")
		}
		for _, item := range items {
			data.Add(rowPrefix+"-value", encodeScalar(item))
		}
	default:
		data.Set(rowPrefix+"-value", encodeScalar(value))
	}
	return nil
}

func encodeScalar(value any) string {
	switch v := value.(type) {
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}
