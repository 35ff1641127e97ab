package product

import (
	"context"
	"fmt"
	"strings"

	"brewpos/internal/domain"
	productrepo "brewpos/internal/repository/product"
)

// Service is the catalog collaborator: product lookup by name plus menu listings.
type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

// Lookup returns the product with the given name, case-insensitively.
func (s *Service) Lookup(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: product name required", domain.ErrInvalidInput)
	}
	return s.repo.GetByName(ctx, name)
}

func (s *Service) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	return s.repo.CountByType(ctx)
}
