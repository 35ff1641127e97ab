package httpserver

import (
	"context"
	"errors"
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/metrics"
	"brewpos/internal/receipt"
	cartsvc "brewpos/internal/service/cart"
	checkoutsvc "brewpos/internal/service/checkout"
	"brewpos/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type sessionRegistry interface {
	Open(cashier string) (session.Session, error)
	Get(id string) (session.Session, error)
	Close(id string) error
}

type cartService interface {
	Add(ctx context.Context, sessionID string, in cartsvc.AddInput) (*domain.LineItem, error)
	Edit(ctx context.Context, sessionID, id string, in cartsvc.EditInput) (*domain.LineItem, error)
	Remove(ctx context.Context, sessionID, id string) error
	View(ctx context.Context, sessionID string) (*cartsvc.View, error)
	Totals(ctx context.Context, sessionID string) (domain.Totals, error)
	Clear(ctx context.Context, sessionID string, proof domain.AuthorizationProof) (int64, error)
	VoidLineItem(ctx context.Context, id string, proof domain.AuthorizationProof) (*domain.LineItem, error)
}

type checkoutService interface {
	Confirm(ctx context.Context, in checkoutsvc.ConfirmInput) (*domain.Settlement, error)
	NextCodePreview(ctx context.Context) (string, error)
	Transaction(ctx context.Context, code string) (*domain.Settlement, error)
	History(ctx context.Context, limit int, before string) (*checkoutsvc.HistoryPage, error)
}

type productService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Lookup(ctx context.Context, name string) (*domain.Product, error)
	Categories(ctx context.Context) ([]domain.CategoryCount, error)
}

type receiptPrinter interface {
	Print(ctx context.Context, in receipt.Input) ([]byte, error)
	Forget(ctx context.Context, txID string)
}

// Deps holds the services the HTTP layer delegates to.
type Deps struct {
	Sessions sessionRegistry
	Cart     cartService
	Checkout checkoutService
	Products productService
	Printer  receiptPrinter

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Location is used to stamp receipts when the caller gives no date or time.
	Location    *time.Location
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Cart == nil || deps.Checkout == nil {
		return nil, errors.New("sessions, cart and checkout services are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), instrument(deps.Metrics))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	}

	var ready pinger
	if db != nil {
		ready = db
	}
	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(ready))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	h := &handlers{deps: deps, logger: logger.Named("http")}

	router.POST("/sessions", h.openSession)
	sessions := router.Group("/sessions/:sessionID", sessionMiddleware(deps.Sessions))
	{
		sessions.GET("", h.getSession)
		sessions.DELETE("", h.closeSession)
		sessions.GET("/cart", h.viewCart)
		sessions.GET("/cart/totals", h.cartTotals)
		sessions.POST("/cart/items", h.addItem)
		sessions.PATCH("/cart/items/:itemID", h.editItem)
		sessions.DELETE("/cart/items/:itemID", h.removeItem)
		sessions.POST("/cart/clear", h.clearCart)
		sessions.POST("/checkout", h.checkout)
	}

	router.GET("/transactions", h.listTransactions)
	router.GET("/transactions/next-code", h.nextCode)
	router.GET("/transactions/:code", h.getTransaction)
	router.GET("/transactions/:code/receipt", h.receipt)
	router.POST("/line-items/:itemID/void", h.voidItem)

	if deps.Products != nil {
		router.GET("/products", h.listProducts)
		router.GET("/products/categories", h.categories)
		router.GET("/products/:name", h.getProduct)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", idempotencyHeader, requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}
