package product

import (
	"context"

	"brewpos/internal/domain"
)

// Repository is the catalog collaborator as seen by the core.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByName(ctx context.Context, name string) (*domain.Product, error)
	CountByType(ctx context.Context) ([]domain.CategoryCount, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
