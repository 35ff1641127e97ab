package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/metrics"
	"brewpos/internal/receipt"
	cartsvc "brewpos/internal/service/cart"
	checkoutsvc "brewpos/internal/service/checkout"
	"brewpos/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type stubCart struct {
	added    []cartsvc.AddInput
	addErr   error
	view     cartsvc.View
	voided   *domain.LineItem
	voidErr  error
	clearErr error
}

func (s *stubCart) Add(_ context.Context, sessionID string, in cartsvc.AddInput) (*domain.LineItem, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.added = append(s.added, in)
	return &domain.LineItem{
		ID: "item-1", SessionID: sessionID, ProductName: in.Product, Size: domain.SizeLarge,
		Quantity: 2, BasePriceCents: 3900, UnitPriceCents: 4900, TotalCents: 9800, Status: domain.LineItemPending,
	}, nil
}

func (s *stubCart) Edit(context.Context, string, string, cartsvc.EditInput) (*domain.LineItem, error) {
	return nil, domain.ErrNotFound
}

func (s *stubCart) Remove(context.Context, string, string) error { return nil }

func (s *stubCart) View(context.Context, string) (*cartsvc.View, error) { return &s.view, nil }

func (s *stubCart) Totals(context.Context, string) (domain.Totals, error) { return s.view.Totals, nil }

func (s *stubCart) Clear(context.Context, string, domain.AuthorizationProof) (int64, error) {
	if s.clearErr != nil {
		return 0, s.clearErr
	}
	return int64(len(s.view.Items)), nil
}

func (s *stubCart) VoidLineItem(context.Context, string, domain.AuthorizationProof) (*domain.LineItem, error) {
	return s.voided, s.voidErr
}

type stubCheckout struct {
	last    checkoutsvc.ConfirmInput
	result  *domain.Settlement
	err     error
	lookups map[string]*domain.Settlement

	history       *checkoutsvc.HistoryPage
	historyLimit  int
	historyBefore string
}

func (s *stubCheckout) Confirm(_ context.Context, in checkoutsvc.ConfirmInput) (*domain.Settlement, error) {
	s.last = in
	return s.result, s.err
}

func (s *stubCheckout) NextCodePreview(context.Context) (string, error) { return "BBT0042", nil }

func (s *stubCheckout) Transaction(_ context.Context, code string) (*domain.Settlement, error) {
	if res, ok := s.lookups[code]; ok {
		return res, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubCheckout) History(_ context.Context, limit int, before string) (*checkoutsvc.HistoryPage, error) {
	s.historyLimit, s.historyBefore = limit, before
	if s.err != nil {
		return nil, s.err
	}
	if s.history == nil {
		return &checkoutsvc.HistoryPage{Transactions: []domain.Settlement{}}, nil
	}
	return s.history, nil
}

type stubPrinter struct {
	printed   []receipt.Input
	forgotten []string
}

func (p *stubPrinter) Print(_ context.Context, in receipt.Input) ([]byte, error) {
	p.printed = append(p.printed, in)
	return []byte("\x89PNG"), nil
}

func (p *stubPrinter) Forget(_ context.Context, txID string) {
	p.forgotten = append(p.forgotten, txID)
}

type testEnv struct {
	router   *gin.Engine
	sessions *session.Registry
	cart     *stubCart
	checkout *stubCheckout
	printer  *stubPrinter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		sessions: session.NewRegistry(nil, time.Minute, nil),
		cart:     &stubCart{},
		checkout: &stubCheckout{lookups: map[string]*domain.Settlement{}},
		printer:  &stubPrinter{},
	}
	reg := prometheus.NewRegistry()
	router, err := buildRouter(zap.NewNop(), nil, Deps{
		Sessions: env.sessions,
		Cart:     env.cart,
		Checkout: env.checkout,
		Printer:  env.printer,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	env.router = router
	return env
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) openSession(t *testing.T) session.Session {
	t.Helper()
	s, err := e.sessions.Open("Ana")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return s
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestBuildRouterRequiresServices(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), nil, Deps{}); err == nil {
		t.Fatalf("expected error for missing services")
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := env.do(http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without db, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestOpenSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/sessions", `{"cashier":"Ana"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var s session.Session
	decode(t, rec, &s)
	if s.ID == "" || s.CashierName != "Ana" {
		t.Fatalf("unexpected session %+v", s)
	}

	if rec := env.do(http.MethodPost, "/sessions", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/sessions/"+s.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := env.do(http.MethodDelete, "/sessions/"+s.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/sessions/"+s.ID+"/cart", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rec.Code)
	}
}

func TestAddItemFormatsAmounts(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)

	rec := env.do(http.MethodPost, "/sessions/"+s.ID+"/cart/items", `{"product":"Wintermelon","size":"Large","quantity":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var item lineItemResponse
	decode(t, rec, &item)
	if item.Total != "98.00" || item.UnitPrice != "49.00" || !item.Complete {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(env.cart.added) != 1 || env.cart.added[0].Product != "Wintermelon" {
		t.Fatalf("unexpected add calls %+v", env.cart.added)
	}
}

func TestAddItemUnavailable(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)
	env.cart.addErr = fmt.Errorf("%w: Okinawa", domain.ErrProductUnavailable)

	rec := env.do(http.MethodPost, "/sessions/"+s.ID+"/cart/items", `{"product":"Okinawa"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body errorBody
	decode(t, rec, &body)
	if body.Reason != "product_unavailable" {
		t.Fatalf("unexpected reason %q", body.Reason)
	}
}

func TestEditMissingItem(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)
	rec := env.do(http.MethodPatch, "/sessions/"+s.ID+"/cart/items/nope", `{"quantity":3}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestViewCart(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)
	env.cart.view = cartsvc.View{
		Items:  []domain.LineItem{{ID: "a", ProductName: "Taro", Quantity: 1}},
		Totals: domain.Totals{ItemCount: 1, Incomplete: 1},
	}
	rec := env.do(http.MethodGet, "/sessions/"+s.ID+"/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body cartResponse
	decode(t, rec, &body)
	if len(body.Items) != 1 || body.Items[0].Complete || body.Totals.GrandTotal != "0.00" {
		t.Fatalf("unexpected cart %+v", body)
	}
}

func TestClearCartUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)
	env.cart.clearErr = domain.ErrUnauthorized
	rec := env.do(http.MethodPost, "/sessions/"+s.ID+"/cart/clear", `{"username":"BBADMIN","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutPassesSessionAndKey(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)
	env.checkout.result = &domain.Settlement{
		Transaction: domain.Transaction{ID: "tx-1", Code: "BBT0001", Number: 1, TotalCents: 17300, AmountTenderedCents: 20000, ChangeCents: 2700, PaymentMethod: domain.PaymentCash},
	}

	rec := env.do(http.MethodPost, "/sessions/"+s.ID+"/checkout", `{"paymentMethod":"Cash","amountTendered":"200.00"}`, idempotencyHeader, "key-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	got := env.checkout.last
	if got.SessionID != s.ID || got.CashierName != "Ana" || got.AmountTenderedCents != 20000 || got.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected confirm input %+v", got)
	}
	var body settlementResponse
	decode(t, rec, &body)
	if body.Transaction.Change != "27.00" || body.Transaction.Code != "BBT0001" {
		t.Fatalf("unexpected settlement %+v", body.Transaction)
	}

	env.checkout.result.Replayed = true
	rec = env.do(http.MethodPost, "/sessions/"+s.ID+"/checkout", `{"paymentMethod":"Cash","amountTendered":200}`, idempotencyHeader, "key-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
}

func TestCheckoutRejectsBadAmount(t *testing.T) {
	env := newTestEnv(t)
	s := env.openSession(t)
	rec := env.do(http.MethodPost, "/sessions/"+s.ID+"/checkout", `{"paymentMethod":"Cash","amountTendered":"10.005"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	rec = env.do(http.MethodPost, "/sessions/"+s.ID+"/checkout", `{"amountTendered":"10"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{domain.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
		{fmt.Errorf("%w: short by 10.00", domain.ErrInsufficientPayment), http.StatusUnprocessableEntity, "insufficient_payment"},
		{fmt.Errorf("%w: gave up after 3 attempts: %w", domain.ErrRetryable, domain.ErrCommitConflict), http.StatusServiceUnavailable, "commit_conflict"},
		{errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		s := env.openSession(t)
		env.checkout.err = tc.err
		rec := env.do(http.MethodPost, "/sessions/"+s.ID+"/checkout", `{"paymentMethod":"Cash","amountTendered":"1"}`)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		var body errorBody
		decode(t, rec, &body)
		if body.Reason != tc.reason {
			t.Fatalf("%v: unexpected reason %q", tc.err, body.Reason)
		}
		if tc.status == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After header")
		}
		if tc.status == http.StatusInternalServerError && strings.Contains(body.Message, "fire") {
			t.Fatalf("internal error leaked: %q", body.Message)
		}
	}
}

func TestNextCodeAndLookup(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/transactions/next-code", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "BBT0042") {
		t.Fatalf("unexpected next-code response %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/transactions/BBT0009", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTransactions(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.history = &checkoutsvc.HistoryPage{
		Transactions: []domain.Settlement{
			{Transaction: domain.Transaction{Code: "BBT0005", Number: 5, TotalCents: 3900}, Items: []domain.LineItem{}},
			{Transaction: domain.Transaction{Code: "BBT0004", Number: 4, TotalCents: 17300}, Items: []domain.LineItem{}},
		},
		Next: "BBT0004",
	}

	rec := env.do(http.MethodGet, "/transactions?limit=2&before=BBT0006", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if env.checkout.historyLimit != 2 || env.checkout.historyBefore != "BBT0006" {
		t.Fatalf("unexpected paging args %d %q", env.checkout.historyLimit, env.checkout.historyBefore)
	}
	var body struct {
		Transactions []struct {
			Transaction struct {
				Code  string `json:"code"`
				Total string `json:"total"`
			} `json:"transaction"`
		} `json:"transactions"`
		Next string `json:"next"`
	}
	decode(t, rec, &body)
	if len(body.Transactions) != 2 || body.Transactions[0].Transaction.Code != "BBT0005" || body.Next != "BBT0004" {
		t.Fatalf("unexpected page %+v", body)
	}
	if body.Transactions[1].Transaction.Total != "173.00" {
		t.Fatalf("expected formatted total, got %q", body.Transactions[1].Transaction.Total)
	}

	if rec := env.do(http.MethodGet, "/transactions?limit=ten", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
	env.checkout.err = fmt.Errorf("%w: cursor", domain.ErrInvalidInput)
	if rec := env.do(http.MethodGet, "/transactions?before=nope", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad cursor, got %d", rec.Code)
	}
}

func TestReceiptDefaultsAndFiltersVoids(t *testing.T) {
	env := newTestEnv(t)
	created := time.Date(2025, 3, 1, 13, 5, 0, 0, time.UTC)
	env.checkout.lookups["BBT0003"] = &domain.Settlement{
		Transaction: domain.Transaction{ID: "tx-3", Code: "BBT0003", CashierName: "Ana", CreatedAt: created},
		Items: []domain.LineItem{
			{ID: "a", Status: domain.LineItemConfirmed},
			{ID: "b", Status: domain.LineItemVoid},
		},
	}

	rec := env.do(http.MethodGet, "/transactions/BBT0003/receipt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	in := env.printer.printed[0]
	if in.Date != "01-03-2025" || in.Time != "01:05 PM" || in.Cashier != "Ana" {
		t.Fatalf("unexpected defaults %+v", in)
	}
	if len(in.Items) != 1 || in.Items[0].ID != "a" {
		t.Fatalf("expected only confirmed items, got %+v", in.Items)
	}

	env.do(http.MethodGet, "/transactions/BBT0003/receipt?cashier=Ben&date=02-03-2025", "")
	in = env.printer.printed[1]
	if in.Cashier != "Ben" || in.Date != "02-03-2025" {
		t.Fatalf("expected query overrides, got %+v", in)
	}
}

func TestVoidForgetsReceipt(t *testing.T) {
	env := newTestEnv(t)
	txID := "tx-5"
	env.cart.voided = &domain.LineItem{ID: "item-9", Status: domain.LineItemVoid, TransactionID: &txID}

	rec := env.do(http.MethodPost, "/line-items/item-9/void", `{"username":"BBADMIN","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(env.printer.forgotten) != 1 || env.printer.forgotten[0] != txID {
		t.Fatalf("expected receipt cache drop, got %v", env.printer.forgotten)
	}

	env.cart.voided, env.cart.voidErr = nil, domain.ErrInvalidState
	if rec := env.do(http.MethodPost, "/line-items/item-9/void", `{"username":"BBADMIN","password":"secret"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/healthz", "")
	rec := env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pos_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected request counter, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := buildRouter(zap.NewNop(), nil, Deps{
		Sessions:    session.NewRegistry(nil, time.Minute, nil),
		Cart:        &stubCart{},
		Checkout:    &stubCheckout{},
		CORSOrigins: []string{"http://till.local"},
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "http://till.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://till.local" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
