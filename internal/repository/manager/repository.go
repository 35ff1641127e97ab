package manager

import (
	"context"

	"brewpos/internal/domain"
)

// Repository persists and fetches manager credentials.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Manager, error)
	Upsert(ctx context.Context, m domain.Manager) (*domain.Manager, error)
}
