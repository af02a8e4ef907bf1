package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thomst/searchkit/internal/domain"
)

// ResultSet holds the rows a compiled predicate matched.
type ResultSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Executor runs compiled predicates against postgres. It is the query
// execution side of the search pipeline: the compiler decides which
// comparisons to request, the executor owns their SQL semantics.
type Executor struct {
	pool     *pgxpool.Pool
	registry *domain.Registry
	maxDepth int
}

// NewExecutor creates an executor over the given pool and model registry.
func NewExecutor(pool *pgxpool.Pool, registry *domain.Registry, maxDepth int) *Executor {
	if maxDepth <= 0 {
		maxDepth = domain.DefaultMaxDepth
	}
	return &Executor{pool: pool, registry: registry, maxDepth: maxDepth}
}

// Apply filters the root model's rows with the predicate and returns the
// matching records. Result sets crossing to-many joins are deduplicated.
func (e *Executor) Apply(ctx context.Context, model string, p *Predicate) (ResultSet, error) {
	tree, err := domain.NewModelTree(e.registry, model, domain.WithMaxDepth(e.maxDepth))
	if err != nil {
		return ResultSet{}, err
	}
	sqlText, args, err := NewBuilder(tree).Select(p)
	if err != nil {
		return ResultSet{}, err
	}

	rows, err := e.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to apply search filter: %w", err)
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	columns := make([]string, len(descriptions))
	for i, d := range descriptions {
		columns[i] = d.Name
	}

	result := ResultSet{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return ResultSet{}, fmt.Errorf("failed to read result row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = values[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("failed to read result rows: %w", err)
	}
	return result, nil
}

// DistinctValues returns the distinct existing values of a field, for
// populating choice widgets of high-cardinality fields without loading the
// whole value domain up front.
func (e *Executor) DistinctValues(ctx context.Context, model, fieldPath, term string, limit int) ([]string, error) {
	tree, err := domain.NewModelTree(e.registry, model, domain.WithMaxDepth(e.maxDepth))
	if err != nil {
		return nil, err
	}
	sqlText, args, err := NewBuilder(tree).DistinctColumn(fieldPath, term, limit)
	if err != nil {
		return nil, err
	}

	rows, err := e.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up field values: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan field value: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read field values: %w", err)
	}
	return values, nil
}
