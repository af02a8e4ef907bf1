// Package query compiles validated filter rules into a boolean predicate
// tree and renders that tree into SQL executable against postgres.
package query

import (
	"fmt"
	"strings"

	"github.com/thomst/searchkit/internal/domain"
)

// PredicateOp identifies a predicate tree node.
type PredicateOp string

const (
	// PredAll matches every row; the identity element for conjunction.
	PredAll PredicateOp = "all"
	// PredCond is an atomic field/operator/value comparison.
	PredCond PredicateOp = "cond"
	PredNot  PredicateOp = "not"
	PredAnd  PredicateOp = "and"
	PredOr   PredicateOp = "or"
	PredXor  PredicateOp = "xor"
)

// Condition is one atomic comparison. Comparison semantics belong to the
// SQL layer; the condition only records which comparison to request.
type Condition struct {
	FieldPath string
	Operator  domain.Operator
	Value     any
}

// Predicate is an opaque boolean expression tree over conditions.
type Predicate struct {
	Op       PredicateOp
	Cond     *Condition
	Operands []*Predicate
}

// MatchAll returns the predicate matching every row.
func MatchAll() *Predicate {
	return &Predicate{Op: PredAll}
}

// Cond builds an atomic predicate.
func Cond(fieldPath string, op domain.Operator, value any) *Predicate {
	return &Predicate{Op: PredCond, Cond: &Condition{FieldPath: fieldPath, Operator: op, Value: value}}
}

// Not negates a predicate.
func Not(p *Predicate) *Predicate {
	return &Predicate{Op: PredNot, Operands: []*Predicate{p}}
}

// And conjoins two predicates.
func And(a, b *Predicate) *Predicate {
	return &Predicate{Op: PredAnd, Operands: []*Predicate{a, b}}
}

// Or disjoins two predicates.
func Or(a, b *Predicate) *Predicate {
	return &Predicate{Op: PredOr, Operands: []*Predicate{a, b}}
}

// Xor combines two predicates with exclusive or.
func Xor(a, b *Predicate) *Predicate {
	return &Predicate{Op: PredXor, Operands: []*Predicate{a, b}}
}

// Compile folds an ordered rule list into a single predicate. Evaluation
// is strictly left-to-right with no operator precedence: each rule's
// combinator joins it to the accumulated predicate of everything before
// it. An empty rule list compiles to the match-all identity; a single
// un-negated rule compiles to exactly its atomic condition.
func Compile(rules []domain.FilterRule) *Predicate {
	acc := MatchAll()
	for i, rule := range rules {
		atom := Cond(rule.FieldPath, rule.Operator, rule.Value)
		if rule.Negate {
			atom = Not(atom)
		}
		if i == 0 {
			// The first rule's combinator is ignored; folding the atom
			// into the identity with AND yields the atom itself.
			acc = atom
			continue
		}
		switch rule.Logic {
		case domain.LogicOr:
			acc = Or(acc, atom)
		case domain.LogicXor:
			acc = Xor(acc, atom)
		default:
			acc = And(acc, atom)
		}
	}
	return acc
}

// String renders the tree for logging and tests.
func (p *Predicate) String() string {
	switch p.Op {
	case PredAll:
		return "TRUE"
	case PredCond:
		return fmt.Sprintf("%s %s %v", p.Cond.FieldPath, p.Cond.Operator, p.Cond.Value)
	case PredNot:
		return fmt.Sprintf("NOT (%s)", p.Operands[0])
	default:
		parts := make([]string, len(p.Operands))
		for i, operand := range p.Operands {
			parts[i] = operand.String()
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(string(p.Op))+" ") + ")"
	}
}
