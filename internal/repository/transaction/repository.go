package transaction

import (
	"context"
	"time"

	"brewpos/internal/domain"
)

// SettleInput identifies the cart being settled.
type SettleInput struct {
	SessionID      string
	IdempotencyKey string
	CashierName    string
	// LockTimeout bounds lock waits inside the settlement transaction.
	LockTimeout time.Duration
	// OnReserved, if set, is called once a code is reserved and before the insert.
	OnReserved func(code string)
}

// Draft is the priced payment computed from the locked Pending items.
type Draft struct {
	PaymentMethod       domain.PaymentMethod
	TotalCents          int64
	AmountTenderedCents int64
	ChangeCents         int64
	// Items, if set, replaces the locked items one for one with their current prices.
	Items []domain.LineItem
}

// BuildFunc validates the locked Pending items and prices the payment.
// A returned error aborts the settlement without reserving a code.
type BuildFunc func(items []domain.LineItem) (Draft, error)

// Repository settles carts into transactions and reads them back.
type Repository interface {
	// Settle reserves a code, inserts the Transaction and confirms the session's
	// Pending items in one database transaction. A repeated idempotency key
	// returns the earlier settlement with Replayed set.
	Settle(ctx context.Context, in SettleInput, build BuildFunc) (*domain.Settlement, error)
	GetByCode(ctx context.Context, code string) (*domain.Transaction, []domain.LineItem, error)
	// ListRecent returns up to limit settlements newest first. A positive before
	// restricts the page to numbers below it.
	ListRecent(ctx context.Context, limit int, before int64) ([]domain.Settlement, error)
}
