package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/events"
	"brewpos/internal/pricing"
	txrepo "brewpos/internal/repository/transaction"
	"brewpos/internal/sequence"
)

// memStore is an in-memory settler. One mutex stands in for the session and counter locks.
type memStore struct {
	mu        sync.Mutex
	codes     sequence.Formatter
	counter   int64
	items     map[string][]domain.LineItem
	byCode    map[string]*domain.Settlement
	byKey     map[string]string
	conflicts int
	conflict  error
	settles   int
	nextID    int
}

func newMemStore() *memStore {
	return &memStore{
		codes:  sequence.NewFormatter(""),
		items:  map[string][]domain.LineItem{},
		byCode: map[string]*domain.Settlement{},
		byKey:  map[string]string{},
	}
}

func (m *memStore) add(session, product string, size domain.Size, qty int, totalCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	unit := totalCents / int64(qty)
	base := unit
	if size == domain.SizeLarge {
		base -= pricing.DefaultSizeUpchargeCents
	}
	m.items[session] = append(m.items[session], domain.LineItem{
		ID:             fmt.Sprintf("item-%d", m.nextID),
		SessionID:      session,
		ProductName:    product,
		Size:           size,
		Quantity:       qty,
		BasePriceCents: base,
		UnitPriceCents: unit,
		TotalCents:     totalCents,
		Status:         domain.LineItemPending,
	})
}

// failNext makes the next n Settle calls fail with err after locking.
func (m *memStore) failNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = n
	m.conflict = err
}

func (m *memStore) ListPending(_ context.Context, sessionID string) ([]domain.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LineItem(nil), m.items[sessionID]...), nil
}

func (m *memStore) Peek(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter + 1, nil
}

func (m *memStore) Settle(ctx context.Context, in txrepo.SettleInput, build txrepo.BuildFunc) (*domain.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settles++
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if code, ok := m.byKey[in.SessionID+"|"+in.IdempotencyKey]; ok {
			prev := *m.byCode[code]
			prev.Replayed = true
			return &prev, nil
		}
	}
	if m.conflicts > 0 {
		m.conflicts--
		return nil, m.conflict
	}

	items := append([]domain.LineItem(nil), m.items[in.SessionID]...)
	draft, err := build(items)
	if err != nil {
		return nil, err
	}
	if draft.Items != nil {
		items = draft.Items
	}

	m.counter++
	code := m.codes.Format(m.counter)
	if in.OnReserved != nil {
		in.OnReserved(code)
	}
	t := domain.Transaction{
		ID:                  fmt.Sprintf("tx-%d", m.counter),
		Code:                code,
		Number:              m.counter,
		SessionID:           in.SessionID,
		IdempotencyKey:      in.IdempotencyKey,
		PaymentMethod:       draft.PaymentMethod,
		TotalCents:          draft.TotalCents,
		AmountTenderedCents: draft.AmountTenderedCents,
		ChangeCents:         draft.ChangeCents,
		CashierName:         in.CashierName,
		Status:              domain.TransactionNormal,
		CreatedAt:           time.Now(),
	}
	for i := range items {
		items[i].Status = domain.LineItemConfirmed
		items[i].TransactionID = &t.ID
	}
	delete(m.items, in.SessionID)
	res := &domain.Settlement{Transaction: t, Items: items}
	m.byCode[code] = res
	if in.IdempotencyKey != "" {
		m.byKey[in.SessionID+"|"+in.IdempotencyKey] = code
	}
	out := *res
	return &out, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*domain.Transaction, []domain.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.byCode[code]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	t := res.Transaction
	return &t, append([]domain.LineItem(nil), res.Items...), nil
}

func (m *memStore) ListRecent(_ context.Context, limit int, before int64) ([]domain.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Settlement
	for n := m.counter; n > 0 && len(out) < limit; n-- {
		if before > 0 && n >= before {
			continue
		}
		res, ok := m.byCode[m.codes.Format(n)]
		if !ok {
			continue
		}
		cp := *res
		cp.Items = append([]domain.LineItem(nil), res.Items...)
		out = append(out, cp)
	}
	return out, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (p *recordingPublisher) PublishSettled(_ context.Context, ev events.TransactionSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.codes = append(p.codes, ev.Code)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingBoard struct {
	mu    sync.Mutex
	shown map[string]string
}

func (b *recordingBoard) ShowReceipt(sessionID, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shown == nil {
		b.shown = map[string]string{}
	}
	b.shown[sessionID] = code
	return nil
}
