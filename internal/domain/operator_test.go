package domain

import (
	"reflect"
	"testing"
)

func TestLegalOperatorsInteger(t *testing.T) {
	field := FieldDescriptor{Name: "integer", Kind: FieldInteger}
	want := []Operator{OpExact, OpGT, OpGTE, OpLT, OpLTE, OpRange}
	if got := LegalOperators(field); !reflect.DeepEqual(got, want) {
		t.Errorf("LegalOperators = %v, want %v", got, want)
	}

	field.Nullable = true
	want = append(want, OpIsNull)
	if got := LegalOperators(field); !reflect.DeepEqual(got, want) {
		t.Errorf("LegalOperators nullable = %v, want %v", got, want)
	}
}

func TestLegalOperatorsBoolean(t *testing.T) {
	field := FieldDescriptor{Name: "boolean", Kind: FieldBoolean, Nullable: true}
	// Nullable booleans get a three-state toggle, never an isnull operator.
	want := []Operator{OpExact}
	if got := LegalOperators(field); !reflect.DeepEqual(got, want) {
		t.Errorf("LegalOperators = %v, want %v", got, want)
	}
}

func TestLegalOperatorsRelation(t *testing.T) {
	field := FieldDescriptor{Name: "model_b", Kind: FieldRelation, Nullable: true}
	want := []Operator{OpIsNull}
	if got := LegalOperators(field); !reflect.DeepEqual(got, want) {
		t.Errorf("LegalOperators = %v, want %v", got, want)
	}
}

func TestLegalOperatorsChar(t *testing.T) {
	field := FieldDescriptor{Name: "chars", Kind: FieldChar}
	got := LegalOperators(field)
	for _, op := range []Operator{OpIExact, OpExact, OpIContains, OpContains, OpIRegex, OpRegex} {
		if !Legal(field, op) {
			t.Errorf("operator %q should be legal for a char field", op)
		}
	}
	for _, op := range []Operator{OpGT, OpRange, OpIn, OpIsNull} {
		if Legal(field, op) {
			t.Errorf("operator %q should not be legal for a plain char field", op)
		}
	}
	if got[0] != OpIExact {
		t.Errorf("case-insensitive variants should come first, got %v", got[0])
	}
}

func TestLegalOperatorsCharWithChoices(t *testing.T) {
	field := FieldDescriptor{
		Name: "chars_choices", Kind: FieldChar, Nullable: true,
		Choices: []Choice{{Value: "one", Label: "One"}},
	}
	if !Legal(field, OpIn) {
		t.Error("in should be legal for an enumerated char field")
	}
	if !Legal(field, OpIsNull) {
		t.Error("isnull should be legal for a nullable char field")
	}
}

func TestLegalOperatorsText(t *testing.T) {
	field := FieldDescriptor{Name: "body", Kind: FieldText}
	if Legal(field, OpIExact) || Legal(field, OpExact) {
		t.Error("exact matching should not be offered for long text")
	}
	if !Legal(field, OpIContains) {
		t.Error("icontains should be legal for text")
	}
}

func TestOperatorKnown(t *testing.T) {
	if !OpRange.Known() {
		t.Error("range should be a known operator")
	}
	if Operator("between").Known() {
		t.Error("between is not an operator")
	}
}

func TestOperatorCaseInsensitive(t *testing.T) {
	for _, op := range []Operator{OpIExact, OpIContains, OpIStartsWith, OpIEndsWith, OpIRegex} {
		if !op.CaseInsensitive() {
			t.Errorf("%q should be case-insensitive", op)
		}
	}
	if OpExact.CaseInsensitive() {
		t.Error("exact is case-sensitive")
	}
}
