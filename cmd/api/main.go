package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brewpos/internal/config"
	"brewpos/internal/db"
	"brewpos/internal/events"
	"brewpos/internal/httpserver"
	"brewpos/internal/metrics"
	"brewpos/internal/migrate"
	"brewpos/internal/pricing"
	"brewpos/internal/receipt"
	cartrepo "brewpos/internal/repository/cart"
	managerrepo "brewpos/internal/repository/manager"
	productrepo "brewpos/internal/repository/product"
	txrepo "brewpos/internal/repository/transaction"
	"brewpos/internal/schedule"
	"brewpos/internal/sequence"
	authsvc "brewpos/internal/service/auth"
	cartsvc "brewpos/internal/service/cart"
	checkoutsvc "brewpos/internal/service/checkout"
	productsvc "brewpos/internal/service/product"
	"brewpos/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	config.LoadDotEnv()
	cfg := config.FromEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	if err := migrate.Apply(ctx, dbpool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc, err := time.LoadLocation(cfg.ReceiptTimezone)
	if err != nil {
		logger.Warn("unknown receipt timezone, using UTC", zap.String("tz", cfg.ReceiptTimezone), zap.Error(err))
		loc = time.UTC
	}

	rules := pricing.Default()
	rules.SizeUpchargeCents = cfg.SizeUpchargeCents
	rules.AddOnFeeCents = cfg.AddOnFeeCents
	codes := sequence.NewFormatter(cfg.CodePrefix)
	counter := sequence.NewPostgres(dbpool, sequence.CounterTransactions)

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}
	defer publisher.Close()

	var cache *receipt.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, receipts will not be cached", zap.Error(err))
		} else {
			cache = receipt.NewCache(rdb, cfg.ReceiptCacheTTL, logger)
		}
	}

	renderOpts := receipt.Options{AddOnFeeCents: rules.AddOnFeeCents}
	if cfg.ReceiptLogoPath != "" {
		logo, err := receipt.LoadLogo(cfg.ReceiptLogoPath)
		if err != nil {
			logger.Warn("receipt logo not loaded", zap.String("path", cfg.ReceiptLogoPath), zap.Error(err))
		} else {
			renderOpts.Logo = logo
		}
	}
	renderer, err := receipt.NewRenderer(renderOpts)
	if err != nil {
		logger.Fatal("init receipt renderer", zap.Error(err))
	}
	printer := receipt.NewPrinter(renderer, cache, m, logger)

	sched := schedule.New(logger)
	defer sched.Stop()
	sessions := session.NewRegistry(sched, cfg.ReceiptDisplayTTL, logger)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	productService := productsvc.New(productRepo)
	authService := authsvc.New(managerrepo.NewPostgres(dbpool, logger), logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	cartService := cartsvc.New(cartRepo, productService, authService, rules, logger)
	checkoutService := checkoutsvc.New(
		txrepo.NewPostgres(dbpool, counter, codes, logger),
		cartRepo,
		counter,
		sessions,
		publisher,
		m,
		checkoutsvc.Options{
			MaxAttempts:   cfg.SettleMaxAttempts,
			CommitTimeout: cfg.SettleCommitTimeout,
			Rules:         rules,
			Codes:         codes,
		},
		logger,
	)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:    sessions,
		Cart:        cartService,
		Checkout:    checkoutService,
		Products:    productService,
		Printer:     printer,
		Metrics:     m,
		Gatherer:    reg,
		Location:    loc,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
