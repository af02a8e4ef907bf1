package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thomst/searchkit/internal/domain"
)

// ErrStaleRule marks a filter rule that no longer matches the current model
// schema: its field path does not resolve anymore or its operator stopped
// being legal for the field. Saved searches hit this after schema drift;
// the caller must surface it, not swallow it into an empty result.
var ErrStaleRule = errors.New("filter rule no longer matches the model schema")

// Builder renders a predicate tree into SQL against the relation graph of
// one root model. A builder is single-use: it accumulates placeholder
// arguments and join clauses while rendering.
type Builder struct {
	tree *domain.ModelTree

	args     []any
	aliases  map[string]string
	joins    []string
	distinct bool
}

// NewBuilder creates a builder for the given model tree.
func NewBuilder(tree *domain.ModelTree) *Builder {
	root := tree.Root()
	return &Builder{
		tree:    tree,
		aliases: map[string]string{root.FieldPath: "t0"},
	}
}

// Select renders a full statement returning the matching root-model rows.
// Joins across to-many relations can fan out, so the statement selects
// DISTINCT whenever such a join is present.
func (b *Builder) Select(p *Predicate) (string, []any, error) {
	where, err := b.render(p)
	if err != nil {
		return "", nil, err
	}
	root := b.tree.Root().Model
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString("t0.* FROM ")
	sb.WriteString(root.Table)
	sb.WriteString(" AS t0")
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY t0.")
	sb.WriteString(root.PKColumn())
	return sb.String(), b.args, nil
}

// DistinctColumn renders a statement returning the distinct non-null values
// of one field path, optionally narrowed by a case-insensitive term match.
func (b *Builder) DistinctColumn(fieldPath, term string, limit int) (string, []any, error) {
	field, node, err := b.tree.ResolveField(fieldPath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStaleRule, err)
	}
	if field.Kind == domain.FieldRelation {
		return "", nil, fmt.Errorf("cannot enumerate values of relation %q", fieldPath)
	}
	alias := b.ensureJoined(node)
	column := alias + "." + field.ColumnName()
	root := b.tree.Root().Model

	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT ")
	sb.WriteString(column)
	sb.WriteString("::text FROM ")
	sb.WriteString(root.Table)
	sb.WriteString(" AS t0")
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(column)
	sb.WriteString(" IS NOT NULL")
	if term != "" {
		sb.WriteString(" AND ")
		sb.WriteString(column)
		sb.WriteString("::text ILIKE ")
		sb.WriteString(b.arg("%" + escapeLike(term) + "%"))
	}
	sb.WriteString(" ORDER BY 1")
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	return sb.String(), b.args, nil
}

func (b *Builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// ensureJoined makes sure every relation on the node's path is joined and
// returns the node's table alias.
func (b *Builder) ensureJoined(node *domain.Node) string {
	if alias, ok := b.aliases[node.FieldPath]; ok {
		return alias
	}
	parent := node.Path[len(node.Path)-2]
	parentAlias := b.ensureJoined(parent)
	rel := node.Relation
	alias := fmt.Sprintf("t%d", len(b.aliases))

	switch rel.Kind {
	case domain.OneToOne, domain.ManyToOne:
		target := rel.TargetColumn
		if target == "" {
			target = node.Model.PKColumn()
		}
		b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			node.Model.Table, alias, parentAlias, rel.ColumnName(), alias, target))
	case domain.OneToMany:
		target := rel.TargetColumn
		if target == "" {
			target = parent.Model.PKColumn()
		}
		b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			node.Model.Table, alias, alias, rel.ColumnName(), parentAlias, target))
		b.distinct = true
	case domain.ManyToMany:
		through := fmt.Sprintf("j%d", len(b.aliases))
		b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			rel.Through, through, through, rel.ThroughLocal, parentAlias, parent.Model.PKColumn()))
		b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			node.Model.Table, alias, alias, node.Model.PKColumn(), through, rel.ThroughTarget))
		b.distinct = true
	}
	b.aliases[node.FieldPath] = alias
	return alias
}

func (b *Builder) render(p *Predicate) (string, error) {
	switch p.Op {
	case PredAll:
		return "TRUE", nil
	case PredCond:
		return b.condition(p.Cond)
	case PredNot:
		inner, err := b.render(p.Operands[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case PredAnd, PredOr:
		glue := " AND "
		if p.Op == PredOr {
			glue = " OR "
		}
		parts := make([]string, len(p.Operands))
		for i, operand := range p.Operands {
			rendered, err := b.render(operand)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return "(" + strings.Join(parts, glue) + ")", nil
	case PredXor:
		// Postgres has no logical XOR; inequality of the two boolean
		// operands is equivalent.
		left, err := b.render(p.Operands[0])
		if err != nil {
			return "", err
		}
		right, err := b.render(p.Operands[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((%s) <> (%s))", left, right), nil
	}
	return "", fmt.Errorf("unknown predicate op %q", p.Op)
}

// condition renders one atomic comparison, joining whatever relations its
// field path traverses.
func (b *Builder) condition(c *Condition) (string, error) {
	field, node, err := b.tree.ResolveField(c.FieldPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStaleRule, err)
	}
	if field.Kind == domain.FieldRelation {
		return b.relationIsNull(node, field.Name, c)
	}
	if !domain.Legal(field, c.Operator) {
		return "", fmt.Errorf("%w: operator %q is no longer legal for field %q", ErrStaleRule, c.Operator, c.FieldPath)
	}
	value, err := domain.CoerceValue(field, c.Operator, c.Value)
	if err != nil {
		return "", fmt.Errorf("%w: field %q: %v", ErrStaleRule, c.FieldPath, err)
	}

	column := b.ensureJoined(node) + "." + field.ColumnName()
	switch c.Operator {
	case domain.OpExact:
		return fmt.Sprintf("%s = %s", column, b.arg(value)), nil
	case domain.OpIExact:
		return fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, b.arg(value)), nil
	case domain.OpContains:
		return fmt.Sprintf("%s LIKE %s", column, b.arg("%"+escapeLike(value.(string))+"%")), nil
	case domain.OpIContains:
		return fmt.Sprintf("%s ILIKE %s", column, b.arg("%"+escapeLike(value.(string))+"%")), nil
	case domain.OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", column, b.arg(escapeLike(value.(string))+"%")), nil
	case domain.OpIStartsWith:
		return fmt.Sprintf("%s ILIKE %s", column, b.arg(escapeLike(value.(string))+"%")), nil
	case domain.OpEndsWith:
		return fmt.Sprintf("%s LIKE %s", column, b.arg("%"+escapeLike(value.(string)))), nil
	case domain.OpIEndsWith:
		return fmt.Sprintf("%s ILIKE %s", column, b.arg("%"+escapeLike(value.(string)))), nil
	case domain.OpRegex:
		return fmt.Sprintf("%s ~ %s", column, b.arg(value)), nil
	case domain.OpIRegex:
		return fmt.Sprintf("%s ~* %s", column, b.arg(value)), nil
	case domain.OpGT:
		return fmt.Sprintf("%s > %s", column, b.arg(value)), nil
	case domain.OpGTE:
		return fmt.Sprintf("%s >= %s", column, b.arg(value)), nil
	case domain.OpLT:
		return fmt.Sprintf("%s < %s", column, b.arg(value)), nil
	case domain.OpLTE:
		return fmt.Sprintf("%s <= %s", column, b.arg(value)), nil
	case domain.OpRange:
		bounds := value.([]any)
		return fmt.Sprintf("%s BETWEEN %s AND %s", column, b.arg(bounds[0]), b.arg(bounds[1])), nil
	case domain.OpIn:
		items := value.([]any)
		list := make([]string, len(items))
		for i, item := range items {
			list[i] = fmt.Sprint(item)
		}
		return fmt.Sprintf("%s = ANY(%s)", column, b.arg(list)), nil
	case domain.OpIsNull:
		if value.(bool) {
			return fmt.Sprintf("%s IS NULL", column), nil
		}
		return fmt.Sprintf("%s IS NOT NULL", column), nil
	}
	return "", fmt.Errorf("unsupported operator %q", c.Operator)
}

// relationIsNull renders the isnull comparison for a field path terminating
// at a relation. Forward relations test the local foreign key; to-many
// relations test for the existence of related rows.
func (b *Builder) relationIsNull(node *domain.Node, relName string, c *Condition) (string, error) {
	if c.Operator != domain.OpIsNull {
		return "", fmt.Errorf("%w: operator %q is no longer legal for relation %q", ErrStaleRule, c.Operator, c.FieldPath)
	}
	wantNull, ok := c.Value.(bool)
	if !ok {
		parsed, err := domain.ParseScalar(domain.ScalarBool, fmt.Sprint(c.Value))
		if err != nil {
			return "", fmt.Errorf("%w: field %q: %v", ErrStaleRule, c.FieldPath, err)
		}
		wantNull = parsed.(bool)
	}
	rel, _ := node.Model.Relation(relName)
	alias := b.ensureJoined(node)

	if rel.Kind.Forward() {
		if wantNull {
			return fmt.Sprintf("%s.%s IS NULL", alias, rel.ColumnName()), nil
		}
		return fmt.Sprintf("%s.%s IS NOT NULL", alias, rel.ColumnName()), nil
	}

	target, ok := b.tree.Registry().Get(rel.Target)
	if !ok {
		return "", fmt.Errorf("%w: relation %q targets unregistered model %q", ErrStaleRule, c.FieldPath, rel.Target)
	}
	var exists string
	if rel.Kind == domain.ManyToMany {
		exists = fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.%s = %s.%s)",
			rel.Through, rel.Through, rel.ThroughLocal, alias, node.Model.PKColumn())
	} else {
		targetColumn := rel.TargetColumn
		if targetColumn == "" {
			targetColumn = node.Model.PKColumn()
		}
		exists = fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.%s = %s.%s)",
			target.Table, target.Table, rel.ColumnName(), alias, targetColumn)
	}
	if wantNull {
		return "NOT " + exists, nil
	}
	return exists, nil
}

// escapeLike escapes LIKE wildcards in a literal search term.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
