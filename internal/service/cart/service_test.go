package cart

import (
	"context"
	"errors"
	"testing"

	"brewpos/internal/domain"
	"brewpos/internal/pricing"
)

type stubRepo struct {
	items      map[string]*domain.LineItem
	order      []string
	nextID     int
	voidErr    error
	lastAdd    domain.LineItem
	clearCalls int
}

func newStubRepo() *stubRepo {
	return &stubRepo{items: map[string]*domain.LineItem{}}
}

func (s *stubRepo) Add(_ context.Context, item domain.LineItem) (*domain.LineItem, error) {
	s.nextID++
	item.ID = string(rune('a' + s.nextID - 1))
	s.lastAdd = item
	s.items[item.ID] = &item
	s.order = append(s.order, item.ID)
	cp := item
	return &cp, nil
}

func (s *stubRepo) Update(_ context.Context, sessionID, id string, mutate func(*domain.LineItem) error) (*domain.LineItem, error) {
	it, ok := s.items[id]
	if !ok || it.SessionID != sessionID || it.Status != domain.LineItemPending {
		return nil, domain.ErrNotFound
	}
	cp := *it
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	*it = cp
	return &cp, nil
}

func (s *stubRepo) Remove(_ context.Context, sessionID, id string) error {
	it, ok := s.items[id]
	if !ok || it.SessionID != sessionID {
		return domain.ErrNotFound
	}
	if it.Status != domain.LineItemPending {
		return domain.ErrInvalidState
	}
	delete(s.items, id)
	return nil
}

func (s *stubRepo) ListPending(_ context.Context, sessionID string) ([]domain.LineItem, error) {
	var out []domain.LineItem
	for _, id := range s.order {
		if it, ok := s.items[id]; ok && it.SessionID == sessionID && it.Status == domain.LineItemPending {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *stubRepo) ClearPending(_ context.Context, sessionID string) (int64, error) {
	s.clearCalls++
	var n int64
	for id, it := range s.items {
		if it.SessionID == sessionID && it.Status == domain.LineItemPending {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) Void(_ context.Context, id string) (*domain.LineItem, error) {
	if s.voidErr != nil {
		return nil, s.voidErr
	}
	it, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	it.Status = domain.LineItemVoid
	cp := *it
	return &cp, nil
}

type stubCatalog struct {
	products map[string]domain.Product
}

func (s *stubCatalog) Lookup(_ context.Context, name string) (*domain.Product, error) {
	p, ok := s.products[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type stubAuth struct {
	password string
}

func (s *stubAuth) Verify(_ context.Context, proof domain.AuthorizationProof) (*domain.Manager, error) {
	if proof.Password != s.password {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Manager{Username: proof.Username}, nil
}

func newService(repo *stubRepo) *Service {
	catalog := &stubCatalog{products: map[string]domain.Product{
		"Wintermelon": {Name: "Wintermelon", PriceCents: 3900, Availability: domain.AvailabilityAvailable},
		"Taro":        {Name: "Taro", PriceCents: 3900, Availability: domain.AvailabilityOutOfStock},
	}}
	return New(repo, catalog, &stubAuth{password: "pw"}, pricing.Default(), nil)
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func TestServiceAddPricesItem(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)

	item, err := svc.Add(context.Background(), "s1", AddInput{Product: "Wintermelon", Size: "Grande", AddOns: []string{"pearl", "Crystal"}, Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (3900 + 1000 + 2*900) * 2
	if item.Size != domain.SizeLarge || item.UnitPriceCents != 6700 || item.TotalCents != 13400 {
		t.Fatalf("unexpected pricing %+v", item)
	}
	if item.AddOns[0] != "Pearl" || item.Status != domain.LineItemPending {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestServiceAddValidation(t *testing.T) {
	svc := newService(newStubRepo())
	ctx := context.Background()

	if _, err := svc.Add(ctx, "s1", AddInput{Product: "Missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Add(ctx, "s1", AddInput{Product: "Taro"}); !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.Add(ctx, "s1", AddInput{Product: "Wintermelon", Size: "Venti"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid size, got %v", err)
	}
	_, err := svc.Add(ctx, "s1", AddInput{Product: "Wintermelon", Quantity: -1})
	if !errors.Is(err, domain.ErrInvalidInput) || !errors.Is(err, pricing.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := svc.Add(ctx, "s1", AddInput{Product: "Wintermelon", AddOns: []string{"Ketchup"}}); !errors.Is(err, pricing.ErrUnknownAddOn) {
		t.Fatalf("expected unknown add-on, got %v", err)
	}
}

func TestServiceAddUnsizedThenEdit(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	ctx := context.Background()

	item, err := svc.Add(ctx, "s1", AddInput{Product: "Wintermelon"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.Quantity != 1 || item.TotalCents != 0 {
		t.Fatalf("unsized item should default to qty 1 and zero price: %+v", item)
	}

	totals, err := svc.Totals(ctx, "s1")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Incomplete != 1 || totals.GrandTotal != 0 {
		t.Fatalf("unexpected totals %+v", totals)
	}

	edited, err := svc.Edit(ctx, "s1", item.ID, EditInput{Size: strPtr("Medio"), Quantity: intPtr(3)})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Size != domain.SizeSmall || edited.TotalCents != 11700 {
		t.Fatalf("unexpected edit %+v", edited)
	}

	if _, err := svc.Edit(ctx, "s1", item.ID, EditInput{Quantity: intPtr(0)}); !errors.Is(err, pricing.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := svc.Edit(ctx, "s2", item.ID, EditInput{Quantity: intPtr(1)}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for other session, got %v", err)
	}

	view, err := svc.View(ctx, "s1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view.Items) != 1 || view.Totals.GrandTotal != 11700 || view.Totals.ItemCount != 3 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestServiceClearRequiresManager(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "s1", AddInput{Product: "Wintermelon", Size: "Small"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Clear(ctx, "s1", domain.AuthorizationProof{Username: "BBADMIN", Password: "nope"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if repo.clearCalls != 0 {
		t.Fatalf("clear must not run without approval")
	}
	n, err := svc.Clear(ctx, "s1", domain.AuthorizationProof{Username: "BBADMIN", Password: "pw"})
	if err != nil || n != 1 {
		t.Fatalf("Clear: %d %v", n, err)
	}
	items, _ := svc.List(ctx, "s1")
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v", items)
	}
}

func TestServiceVoidLineItem(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	ctx := context.Background()

	item, err := svc.Add(ctx, "s1", AddInput{Product: "Wintermelon", Size: "Small"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.VoidLineItem(ctx, item.ID, domain.AuthorizationProof{Password: "bad"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	repo.voidErr = domain.ErrInvalidState
	if _, err := svc.VoidLineItem(ctx, item.ID, domain.AuthorizationProof{Password: "pw"}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	repo.voidErr = nil
	voided, err := svc.VoidLineItem(ctx, item.ID, domain.AuthorizationProof{Password: "pw"})
	if err != nil || voided.Status != domain.LineItemVoid {
		t.Fatalf("VoidLineItem: %+v %v", voided, err)
	}
}
