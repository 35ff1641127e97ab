// Package session tracks open cashier sessions and the receipt each one is showing.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/schedule"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Session is one cashier's working context. Carts are keyed by ID.
type Session struct {
	ID          string    `json:"id"`
	CashierName string    `json:"cashierName"`
	OpenedAt    time.Time `json:"openedAt"`
	// Receipt is the code of the transaction currently on screen, if any.
	Receipt      string     `json:"receipt,omitempty"`
	ReceiptUntil *time.Time `json:"receiptUntil,omitempty"`
}

// Registry is the in-process set of open sessions.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	sched      *schedule.Scheduler
	displayTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewRegistry(sched *schedule.Scheduler, displayTTL time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sched == nil {
		sched = schedule.New(logger)
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		sched:      sched,
		displayTTL: displayTTL,
		now:        time.Now,
		logger:     logger.Named("session"),
	}
}

// Open starts a session for the named cashier.
func (r *Registry) Open(cashier string) (Session, error) {
	cashier = strings.TrimSpace(cashier)
	if cashier == "" {
		return Session{}, fmt.Errorf("%w: cashier name required", domain.ErrInvalidInput)
	}
	now := r.now()
	s := &Session{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		CashierName: cashier,
		OpenedAt:    now,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.logger.Info("opened", zap.String("session", s.ID), zap.String("cashier", cashier))
	return *s, nil
}

func (r *Registry) Get(id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, domain.ErrNotFound
	}
	return *s, nil
}

// Close forgets the session and cancels its scheduled work. Pending cart items stay in the store.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	r.sched.Cancel(displayKey(id))
	r.logger.Info("closed", zap.String("session", id))
	return nil
}

// ShowReceipt marks code as displayed and schedules the display to clear after the TTL.
func (r *Registry) ShowReceipt(id, code string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	until := r.now().Add(r.displayTTL)
	s.Receipt = code
	s.ReceiptUntil = &until
	// Scheduled under r.mu so the pending timer always belongs to the receipt on display.
	r.sched.After(displayKey(id), r.displayTTL, func() { r.clearReceipt(id, code) })
	r.mu.Unlock()
	return nil
}

func (r *Registry) clearReceipt(id, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Receipt != code {
		return
	}
	s.Receipt = ""
	s.ReceiptUntil = nil
	r.logger.Debug("receipt cleared", zap.String("session", id), zap.String("code", code))
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func displayKey(id string) string {
	return "receipt:" + id
}
