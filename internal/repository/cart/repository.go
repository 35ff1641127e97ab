package cart

import (
	"context"

	"brewpos/internal/domain"
)

// Repository persists the line items of cashier sessions. Every mutation
// holds the session's advisory lock for the life of its transaction.
type Repository interface {
	Add(ctx context.Context, item domain.LineItem) (*domain.LineItem, error)
	Get(ctx context.Context, sessionID, id string) (*domain.LineItem, error)
	// Update loads a Pending item under lock, applies mutate and writes the result back.
	Update(ctx context.Context, sessionID, id string, mutate func(*domain.LineItem) error) (*domain.LineItem, error)
	Remove(ctx context.Context, sessionID, id string) error
	ListPending(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.LineItem, error)
	ClearPending(ctx context.Context, sessionID string) (int64, error)
	Void(ctx context.Context, id string) (*domain.LineItem, error)
}
