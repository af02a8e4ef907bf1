package repository

import (
	"context"

	"github.com/thomst/searchkit/internal/domain"

	"github.com/google/uuid"
)

// SearchRepository defines the interface for saved search operations
type SearchRepository interface {
	Create(ctx context.Context, search domain.Search) (domain.Search, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Search, error)
	List(ctx context.Context, model string) ([]domain.Search, error)
	ListAll(ctx context.Context) ([]domain.Search, error)
	Update(ctx context.Context, search domain.Search) (domain.Search, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, model string, name string) (bool, error)
}
