// Package seed loads a starter menu and the store manager account.
package seed

import (
	"context"
	"errors"
	"fmt"

	"brewpos/internal/domain"
	"go.uber.org/zap"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type ManagerEnroller interface {
	Enroll(ctx context.Context, username, fullName, password string) (*domain.Manager, error)
}

// Manager is the account created when a password is configured.
type Manager struct {
	Username string
	FullName string
	Password string
}

// Menu is the starter catalog. Prices are in centavos.
var Menu = []domain.Product{
	{Name: "Wintermelon", Type: "Milk Tea", PriceCents: 3900},
	{Name: "Okinawa", Type: "Milk Tea", PriceCents: 3900},
	{Name: "Taro", Type: "Milk Tea", PriceCents: 3900},
	{Name: "Dark Chocolate", Type: "Milk Tea", PriceCents: 3900},
	{Name: "Cookies and Cream", Type: "Milk Tea", PriceCents: 3900},
	{Name: "Matcha", Type: "Frappe", PriceCents: 4900},
	{Name: "Mocha", Type: "Frappe", PriceCents: 4900},
	{Name: "Strawberry", Type: "Fruit Tea", PriceCents: 2900},
	{Name: "Lychee", Type: "Fruit Tea", PriceCents: 2900},
	{Name: "Iced Americano", Type: "Coffee", PriceCents: 3900},
	{Name: "Hot Caramel Macchiato", Type: "Hot Brew", PriceCents: 4900, Availability: domain.AvailabilityLimited},
}

// Apply upserts the menu and, if m has a password, enrolls the manager. It is idempotent.
func Apply(ctx context.Context, products ProductWriter, managers ManagerEnroller, m Manager, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, p := range Menu {
		if _, err := products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	logger.Info("menu seeded", zap.Int("products", len(Menu)))

	if m.Password == "" {
		logger.Warn("manager password not set, skipping manager account", zap.String("username", m.Username))
		return nil
	}
	if managers == nil {
		return errors.New("manager enroller required")
	}
	if _, err := managers.Enroll(ctx, m.Username, m.FullName, m.Password); err != nil {
		return fmt.Errorf("enroll manager %s: %w", m.Username, err)
	}
	logger.Info("manager enrolled", zap.String("username", m.Username))
	return nil
}
