package cart

import (
	"context"
	"fmt"
	"strings"

	"brewpos/internal/domain"
	"brewpos/internal/pricing"
	"go.uber.org/zap"
)

// Service is the cart store of a cashier session. Items stay Pending until checkout.
type Service struct {
	repo    cartRepo
	catalog catalog
	auth    authorizer
	rules   pricing.Rules
	logger  *zap.Logger
}

type cartRepo interface {
	Add(ctx context.Context, item domain.LineItem) (*domain.LineItem, error)
	Update(ctx context.Context, sessionID, id string, mutate func(*domain.LineItem) error) (*domain.LineItem, error)
	Remove(ctx context.Context, sessionID, id string) error
	ListPending(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	ClearPending(ctx context.Context, sessionID string) (int64, error)
	Void(ctx context.Context, id string) (*domain.LineItem, error)
}

type catalog interface {
	Lookup(ctx context.Context, name string) (*domain.Product, error)
}

type authorizer interface {
	Verify(ctx context.Context, proof domain.AuthorizationProof) (*domain.Manager, error)
}

func New(repo cartRepo, catalog catalog, auth authorizer, rules pricing.Rules, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, catalog: catalog, auth: auth, rules: rules, logger: logger.Named("cart")}
}

type AddInput struct {
	Product  string   `json:"product"`
	Size     string   `json:"size,omitempty"`
	AddOns   []string `json:"addOns,omitempty"`
	Quantity int      `json:"quantity"`
}

// EditInput changes only the fields that are set.
type EditInput struct {
	Size     *string   `json:"size,omitempty"`
	AddOns   *[]string `json:"addOns,omitempty"`
	Quantity *int      `json:"quantity,omitempty"`
}

// View is a cart listing with its totals.
type View struct {
	Items  []domain.LineItem `json:"items"`
	Totals domain.Totals     `json:"totals"`
}

func (s *Service) Add(ctx context.Context, sessionID string, in AddInput) (*domain.LineItem, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session required", domain.ErrInvalidInput)
	}
	size, err := domain.ParseSize(in.Size)
	if err != nil {
		return nil, err
	}
	addOns, err := s.rules.NormalizeAddOns(in.AddOns)
	if err != nil {
		return nil, invalid(err)
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}

	product, err := s.catalog.Lookup(ctx, in.Product)
	if err != nil {
		return nil, err
	}
	if !product.Sellable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, product.Name)
	}

	item := domain.LineItem{
		SessionID:      sessionID,
		ProductName:    product.Name,
		BasePriceCents: product.PriceCents,
		Size:           size,
		AddOns:         addOns,
		Quantity:       qty,
		Status:         domain.LineItemPending,
	}
	if err := s.rules.Reprice(&item); err != nil {
		return nil, invalid(err)
	}
	created, err := s.repo.Add(ctx, item)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item added",
		zap.String("session", sessionID),
		zap.String("product", created.ProductName),
		zap.String("size", string(created.Size)),
		zap.Int("qty", created.Quantity),
	)
	return created, nil
}

func (s *Service) Edit(ctx context.Context, sessionID, id string, in EditInput) (*domain.LineItem, error) {
	var size domain.Size
	if in.Size != nil {
		parsed, err := domain.ParseSize(*in.Size)
		if err != nil {
			return nil, err
		}
		size = parsed
	}
	var addOns []string
	if in.AddOns != nil {
		normalized, err := s.rules.NormalizeAddOns(*in.AddOns)
		if err != nil {
			return nil, invalid(err)
		}
		addOns = normalized
	}

	return s.repo.Update(ctx, sessionID, id, func(item *domain.LineItem) error {
		if in.Size != nil {
			item.Size = size
		}
		if in.AddOns != nil {
			item.AddOns = addOns
		}
		if in.Quantity != nil {
			item.Quantity = *in.Quantity
		}
		if err := s.rules.Reprice(item); err != nil {
			return invalid(err)
		}
		return nil
	})
}

func (s *Service) Remove(ctx context.Context, sessionID, id string) error {
	return s.repo.Remove(ctx, sessionID, id)
}

func (s *Service) List(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	items, err := s.repo.ListPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return items, nil
}

// Totals recomputes the cart totals from the current Pending items.
func (s *Service) Totals(ctx context.Context, sessionID string) (domain.Totals, error) {
	items, err := s.repo.ListPending(ctx, sessionID)
	if err != nil {
		return domain.Totals{}, err
	}
	return s.rules.Totals(items), nil
}

func (s *Service) View(ctx context.Context, sessionID string) (*View, error) {
	items, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &View{Items: items, Totals: s.rules.Totals(items)}, nil
}

// Clear drops every Pending item of the session once a manager approves.
func (s *Service) Clear(ctx context.Context, sessionID string, proof domain.AuthorizationProof) (int64, error) {
	m, err := s.auth.Verify(ctx, proof)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.ClearPending(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cart cleared", zap.String("session", sessionID), zap.String("manager", m.Username), zap.Int64("items", n))
	return n, nil
}

// VoidLineItem voids a settled line item once a manager approves.
func (s *Service) VoidLineItem(ctx context.Context, id string, proof domain.AuthorizationProof) (*domain.LineItem, error) {
	m, err := s.auth.Verify(ctx, proof)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Void(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("line item voided", zap.String("item", id), zap.String("manager", m.Username))
	return item, nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
}
