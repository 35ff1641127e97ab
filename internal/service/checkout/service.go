// Package checkout settles a cashier session's cart into a coded Transaction.
//
// A confirm moves through Idle, Validating, Reserving, Committing and ends
// Settled, Rejected (validation) or Failed (infrastructure or retries
// exhausted). Reserving and Committing run in one database transaction and
// are repeated on concurrency errors up to MaxAttempts times.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/events"
	"brewpos/internal/metrics"
	"brewpos/internal/pricing"
	txrepo "brewpos/internal/repository/transaction"
	"brewpos/internal/sequence"
	"go.uber.org/zap"
)

// State is a step of the settlement state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateReserving
	StateCommitting
	StateSettled
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateValidating:
		return "Validating"
	case StateReserving:
		return "Reserving"
	case StateCommitting:
		return "Committing"
	case StateSettled:
		return "Settled"
	case StateRejected:
		return "Rejected"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type settler interface {
	Settle(ctx context.Context, in txrepo.SettleInput, build txrepo.BuildFunc) (*domain.Settlement, error)
	GetByCode(ctx context.Context, code string) (*domain.Transaction, []domain.LineItem, error)
	ListRecent(ctx context.Context, limit int, before int64) ([]domain.Settlement, error)
}

type pendingLister interface {
	ListPending(ctx context.Context, sessionID string) ([]domain.LineItem, error)
}

type codePeeker interface {
	Peek(ctx context.Context) (int64, error)
}

type receiptBoard interface {
	ShowReceipt(sessionID, code string) error
}

// Options tunes the coordinator. Zero values fall back to defaults.
type Options struct {
	MaxAttempts    int
	CommitTimeout  time.Duration
	Backoff        time.Duration
	PublishTimeout time.Duration
	Rules          pricing.Rules
	Codes          sequence.Formatter
	// OnTransition is called for every state change.
	OnTransition func(sessionID string, from, to State)
}

const (
	DefaultMaxAttempts    = 3
	DefaultCommitTimeout  = 2 * time.Second
	DefaultBackoff        = 25 * time.Millisecond
	DefaultPublishTimeout = 2 * time.Second
)

type Service struct {
	repo      settler
	pending   pendingLister
	counter   codePeeker
	board     receiptBoard
	publisher events.Publisher
	metrics   *metrics.Metrics
	opts      Options
	logger    *zap.Logger
}

func New(repo settler, pending pendingLister, counter codePeeker, board receiptBoard, publisher events.Publisher, m *metrics.Metrics, opts Options, logger *zap.Logger) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultCommitTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.Rules.AddOnFeeCents == 0 && opts.Rules.SizeUpchargeCents == 0 {
		opts.Rules = pricing.Default()
	}
	if opts.Codes.Prefix == "" {
		opts.Codes = sequence.NewFormatter("")
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		pending:   pending,
		counter:   counter,
		board:     board,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		logger:    logger.Named("checkout"),
	}
}

// ConfirmInput is a request to settle the session's cart.
type ConfirmInput struct {
	SessionID           string
	CashierName         string
	PaymentMethod       string
	AmountTenderedCents int64
	// IdempotencyKey makes retries of the same confirm return the first result.
	IdempotencyKey string
}

// Confirm settles every Pending item of the session into one Transaction.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (*domain.Settlement, error) {
	started := time.Now()
	run := &attempt{svc: s, session: in.SessionID, state: StateIdle}

	res, err := s.confirm(ctx, run, in)
	s.metrics.SettleDuration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil && res.Replayed:
		s.metrics.Settlements.WithLabelValues(metrics.OutcomeReplayed).Inc()
	case err == nil:
		s.metrics.Settlements.WithLabelValues(metrics.OutcomeSettled).Inc()
		s.metrics.SettledCents.WithLabelValues(string(res.Transaction.PaymentMethod)).Add(float64(res.Transaction.TotalCents))
	case run.state == StateRejected:
		s.metrics.Settlements.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		s.metrics.Settlements.WithLabelValues(metrics.OutcomeFailed).Inc()
	}
	return res, err
}

func (s *Service) confirm(ctx context.Context, run *attempt, in ConfirmInput) (*domain.Settlement, error) {
	run.to(StateValidating)
	if strings.TrimSpace(in.SessionID) == "" {
		run.to(StateRejected)
		return nil, fmt.Errorf("%w: session required", domain.ErrInvalidInput)
	}
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		run.to(StateRejected)
		return nil, err
	}
	if in.AmountTenderedCents < 0 {
		run.to(StateRejected)
		return nil, fmt.Errorf("%w: amount tendered must not be negative", domain.ErrInvalidInput)
	}

	items, err := s.pending.ListPending(ctx, in.SessionID)
	if err != nil {
		run.to(StateFailed)
		return nil, err
	}
	// With a key the cart may already be settled; the replay lookup inside the tx decides.
	if _, _, err := Validate(s.opts.Rules, items, method, in.AmountTenderedCents); err != nil && in.IdempotencyKey == "" {
		run.to(StateRejected)
		s.logger.Info("rejected", zap.String("session", in.SessionID), zap.Error(err))
		return nil, err
	}

	settleIn := txrepo.SettleInput{
		SessionID:      in.SessionID,
		IdempotencyKey: in.IdempotencyKey,
		CashierName:    strings.TrimSpace(in.CashierName),
		LockTimeout:    s.opts.CommitTimeout,
		OnReserved:     func(string) { run.to(StateCommitting) },
	}
	build := func(locked []domain.LineItem) (txrepo.Draft, error) {
		draft, _, err := Validate(s.opts.Rules, locked, method, in.AmountTenderedCents)
		return draft, err
	}

	var lastErr error
	for n := 1; n <= s.opts.MaxAttempts; n++ {
		if n > 1 {
			s.metrics.SettleRetries.Inc()
			if err := sleep(ctx, s.opts.Backoff*time.Duration(n-1)); err != nil {
				run.to(StateFailed)
				return nil, err
			}
		}
		run.to(StateReserving)
		res, err := s.settleOnce(ctx, settleIn, build)
		if err == nil {
			run.to(StateSettled)
			s.afterSettle(ctx, res)
			return res, nil
		}
		if domain.IsValidation(err) {
			run.to(StateRejected)
			return nil, err
		}
		if !domain.IsConcurrency(err) {
			run.to(StateFailed)
			s.logger.Error("settle failed", zap.String("session", in.SessionID), zap.Error(err))
			return nil, err
		}
		lastErr = err
		s.logger.Warn("settle conflict",
			zap.String("session", in.SessionID),
			zap.Int("attempt", n),
			zap.Error(err),
		)
	}
	run.to(StateFailed)
	return nil, fmt.Errorf("%w: gave up after %d attempts: %w", domain.ErrRetryable, s.opts.MaxAttempts, lastErr)
}

func (s *Service) settleOnce(ctx context.Context, in txrepo.SettleInput, build txrepo.BuildFunc) (*domain.Settlement, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.CommitTimeout)
	defer cancel()
	res, err := s.repo.Settle(cctx, in, build)
	if err != nil {
		// Our own deadline is a lock wait that ran out, not a caller cancellation.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrCommitConflict, err)
		}
		return nil, err
	}
	res.Totals = s.opts.Rules.Totals(res.Items)
	return res, nil
}

func (s *Service) afterSettle(ctx context.Context, res *domain.Settlement) {
	if s.board != nil {
		if err := s.board.ShowReceipt(res.Transaction.SessionID, res.Transaction.Code); err != nil {
			s.logger.Debug("receipt display skipped", zap.String("session", res.Transaction.SessionID), zap.Error(err))
		}
	}
	if res.Replayed {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishSettled(pctx, events.FromSettlement(*res)); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Warn("settlement event not published", zap.String("code", res.Transaction.Code), zap.Error(err))
	}
}

// NextCodePreview returns the code the next settlement would receive if nobody settles first.
func (s *Service) NextCodePreview(ctx context.Context) (string, error) {
	n, err := s.counter.Peek(ctx)
	if err != nil {
		return "", err
	}
	return s.opts.Codes.Format(n), nil
}

// Transaction loads a settled transaction with its items and totals.
func (s *Service) Transaction(ctx context.Context, code string) (*domain.Settlement, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, err := s.opts.Codes.Parse(code); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	t, items, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return &domain.Settlement{Transaction: *t, Items: items, Totals: s.opts.Rules.Totals(items)}, nil
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryPage is one page of settled transactions, newest first.
// Next is the cursor for the following page, empty on the last one.
type HistoryPage struct {
	Transactions []domain.Settlement `json:"transactions"`
	Next         string              `json:"next,omitempty"`
}

// History lists settled transactions newest first. before is the code of the
// last transaction of the previous page, or empty for the first page.
func (s *Service) History(ctx context.Context, limit int, before string) (*HistoryPage, error) {
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	var cursor int64
	if before = strings.ToUpper(strings.TrimSpace(before)); before != "" {
		n, err := s.opts.Codes.Parse(before)
		if err != nil {
			return nil, fmt.Errorf("%w: cursor %q", domain.ErrInvalidInput, before)
		}
		cursor = n
	}

	list, err := s.repo.ListRecent(ctx, limit+1, cursor)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{Transactions: make([]domain.Settlement, 0, len(list))}
	if len(list) > limit {
		list = list[:limit]
		page.Next = list[limit-1].Transaction.Code
	}
	for _, res := range list {
		if res.Items == nil {
			res.Items = []domain.LineItem{}
		}
		res.Totals = s.opts.Rules.Totals(res.Items)
		page.Transactions = append(page.Transactions, res)
	}
	return page, nil
}

// Validate checks a cart against the settlement rules and prices the payment.
func Validate(rules pricing.Rules, items []domain.LineItem, method domain.PaymentMethod, tenderedCents int64) (txrepo.Draft, domain.Totals, error) {
	if len(items) == 0 {
		return txrepo.Draft{}, domain.Totals{}, domain.ErrEmptyCart
	}
	priced := make([]domain.LineItem, len(items))
	var total int64
	for i, it := range items {
		if it.Size == domain.SizeUnset {
			return txrepo.Draft{}, domain.Totals{}, fmt.Errorf("%w: %s has no size", domain.ErrIncompleteItem, it.ProductName)
		}
		if err := rules.Reprice(&it); err != nil {
			return txrepo.Draft{}, domain.Totals{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, it.ProductName, err)
		}
		priced[i] = it
		total += it.TotalCents
	}
	totals := rules.Totals(priced)

	draft := txrepo.Draft{PaymentMethod: method, TotalCents: total, Items: priced}
	switch method {
	case domain.PaymentCash:
		if tenderedCents < total {
			return txrepo.Draft{}, totals, fmt.Errorf("%w: tendered %d, due %d", domain.ErrInsufficientPayment, tenderedCents, total)
		}
		draft.AmountTenderedCents = tenderedCents
		draft.ChangeCents = tenderedCents - total
	case domain.PaymentDigitalWallet:
		draft.AmountTenderedCents = total
	default:
		return txrepo.Draft{}, totals, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, method)
	}
	return draft, totals, nil
}

type attempt struct {
	svc     *Service
	session string
	state   State
}

func (a *attempt) to(next State) {
	if a.state == next {
		return
	}
	prev := a.state
	a.state = next
	a.svc.logger.Debug("transition",
		zap.String("session", a.session),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
	if a.svc.opts.OnTransition != nil {
		a.svc.opts.OnTransition(a.session, prev, next)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
