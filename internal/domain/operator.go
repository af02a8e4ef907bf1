package domain

// Operator is one comparison lookup a filter rule may request.
type Operator string

const (
	OpExact       Operator = "exact"
	OpIExact      Operator = "iexact"
	OpContains    Operator = "contains"
	OpIContains   Operator = "icontains"
	OpStartsWith  Operator = "startswith"
	OpIStartsWith Operator = "istartswith"
	OpEndsWith    Operator = "endswith"
	OpIEndsWith   Operator = "iendswith"
	OpRegex       Operator = "regex"
	OpIRegex      Operator = "iregex"
	OpGT          Operator = "gt"
	OpGTE         Operator = "gte"
	OpLT          Operator = "lt"
	OpLTE         Operator = "lte"
	OpRange       Operator = "range"
	OpIn          Operator = "in"
	OpIsNull      Operator = "isnull"
)

var operatorDescriptions = map[Operator]string{
	OpExact:       "is exact",
	OpIExact:      "is exact",
	OpContains:    "contains",
	OpIContains:   "contains",
	OpStartsWith:  "starts with",
	OpIStartsWith: "starts with",
	OpEndsWith:    "ends with",
	OpIEndsWith:   "ends with",
	OpRegex:       "matches regular expression",
	OpIRegex:      "matches regular expression",
	OpGT:          "is greater than",
	OpGTE:         "is greater than or equal",
	OpLT:          "is lower than",
	OpLTE:         "is lower than or equal",
	OpRange:       "is within range",
	OpIn:          "is one of",
	OpIsNull:      "is null",
}

// Description returns the human-readable label for the operator.
func (o Operator) Description() string {
	return operatorDescriptions[o]
}

// Known reports whether o is a supported operator.
func (o Operator) Known() bool {
	_, ok := operatorDescriptions[o]
	return ok
}

// CaseInsensitive reports whether the operator delegates case folding to
// the query layer. The value shape is unaffected.
func (o Operator) CaseInsensitive() bool {
	switch o {
	case OpIExact, OpIContains, OpIStartsWith, OpIEndsWith, OpIRegex:
		return true
	}
	return false
}

// LegalOperators returns the ordered operator set legal for a field.
// Legality is a pure function of the field's kind plus nullability: nullable
// non-boolean fields additionally accept isnull, relations accept nothing
// but isnull.
func LegalOperators(f FieldDescriptor) []Operator {
	var ops []Operator
	switch {
	case f.Kind == FieldRelation:
		return []Operator{OpIsNull}
	case f.Kind == FieldBoolean:
		// Nullable booleans are handled by a three-state toggle, not by
		// an extra isnull operator.
		return []Operator{OpExact}
	case f.Kind == FieldText:
		ops = []Operator{
			OpIContains, OpIStartsWith, OpIEndsWith, OpIRegex,
			OpContains, OpStartsWith, OpEndsWith, OpRegex,
		}
	case f.Kind == FieldChar:
		ops = []Operator{
			OpIExact, OpIContains, OpIStartsWith, OpIEndsWith, OpIRegex,
			OpExact, OpContains, OpStartsWith, OpEndsWith, OpRegex,
		}
		if f.HasChoices() {
			ops = append(ops, OpIn)
		}
	case f.Kind.IsArithmetic():
		ops = []Operator{OpExact, OpGT, OpGTE, OpLT, OpLTE, OpRange}
	}
	if f.Nullable {
		ops = append(ops, OpIsNull)
	}
	return ops
}

// Legal reports whether op is in the legal operator set for f.
func Legal(f FieldDescriptor, op Operator) bool {
	for _, legal := range LegalOperators(f) {
		if legal == op {
			return true
		}
	}
	return false
}
