package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thomst/searchkit/internal/domain"
)

// ErrSearchNotFound is returned when no saved search matches the given ID.
var ErrSearchNotFound = errors.New("saved search not found")

// ErrDuplicateName is returned when a search name is already taken for the
// same model. Names are unique per model, not globally.
var ErrDuplicateName = errors.New("a search with this name already exists for this model")

// searchRepository implements SearchRepository interface
type searchRepository struct {
	pool *pgxpool.Pool
}

// NewSearchRepository creates a new saved search repository
func NewSearchRepository(pool *pgxpool.Pool) SearchRepository {
	return &searchRepository{
		pool: pool,
	}
}

func (r *searchRepository) Create(ctx context.Context, search domain.Search) (domain.Search, error) {
	rulesJSON, err := search.RulesAsJSONB()
	if err != nil {
		return domain.Search{}, fmt.Errorf("failed to marshal search rules: %w", err)
	}

	var (
		id        uuid.UUID
		createdAt time.Time
	)
	err = r.pool.QueryRow(ctx,
		`INSERT INTO searches (name, model, rules)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		search.Name, search.Model, rulesJSON,
	).Scan(&id, &createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Search{}, ErrDuplicateName
		}
		return domain.Search{}, fmt.Errorf("failed to create search: %w", err)
	}

	search.ID = id
	search.CreatedAt = createdAt
	return search, nil
}

// GetByID retrieves a saved search by ID
func (r *searchRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Search, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, model, rules, created_at FROM searches WHERE id = $1`, id)
	search, err := scanSearch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Search{}, ErrSearchNotFound
		}
		return domain.Search{}, fmt.Errorf("failed to get search: %w", err)
	}
	return search, nil
}

// List retrieves all saved searches for one model, newest first
func (r *searchRepository) List(ctx context.Context, model string) ([]domain.Search, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, model, rules, created_at
		 FROM searches WHERE model = $1
		 ORDER BY created_at DESC`, model)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	return collectSearches(rows)
}

// ListAll retrieves every saved search across all models
func (r *searchRepository) ListAll(ctx context.Context) ([]domain.Search, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, model, rules, created_at
		 FROM searches
		 ORDER BY model, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	return collectSearches(rows)
}

func (r *searchRepository) Update(ctx context.Context, search domain.Search) (domain.Search, error) {
	rulesJSON, err := search.RulesAsJSONB()
	if err != nil {
		return domain.Search{}, fmt.Errorf("failed to marshal search rules: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE searches SET name = $2, model = $3, rules = $4 WHERE id = $1`,
		search.ID, search.Name, search.Model, rulesJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Search{}, ErrDuplicateName
		}
		return domain.Search{}, fmt.Errorf("failed to update search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Search{}, ErrSearchNotFound
	}
	return r.GetByID(ctx, search.ID)
}

func (r *searchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM searches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSearchNotFound
	}
	return nil
}

// Exists checks whether a search name is already taken for a model
func (r *searchRepository) Exists(ctx context.Context, model string, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM searches WHERE model = $1 AND name = $2)`,
		model, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check search existence: %w", err)
	}
	return exists, nil
}

func scanSearch(row pgx.Row) (domain.Search, error) {
	var (
		search    domain.Search
		rulesJSON []byte
	)
	if err := row.Scan(&search.ID, &search.Name, &search.Model, &rulesJSON, &search.CreatedAt); err != nil {
		return domain.Search{}, err
	}
	rules, err := domain.RulesFromJSONB(rulesJSON)
	if err != nil {
		return domain.Search{}, fmt.Errorf("failed to decode search rules: %w", err)
	}
	search.Rules = rules
	return search, nil
}

func collectSearches(rows pgx.Rows) ([]domain.Search, error) {
	searches := []domain.Search{}
	for rows.Next() {
		search, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		searches = append(searches, search)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read searches: %w", err)
	}
	return searches, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
