package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/bazarly/bazarly/internal/app"
	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/auth"
	"github.com/bazarly/bazarly/internal/catalog"
	"github.com/bazarly/bazarly/internal/finance"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/observability"
	"github.com/bazarly/bazarly/internal/orders"
	"github.com/bazarly/bazarly/internal/platform/cache"
	"github.com/bazarly/bazarly/internal/platform/db"
	"github.com/bazarly/bazarly/internal/returns"
	"github.com/bazarly/bazarly/internal/shared"
	"github.com/bazarly/bazarly/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotency := shared.NewIdempotencyStore(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, redisClient, cfg.TokenTTL)
	authHandler := auth.NewHandler(authService)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(catalogService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	financeCache := finance.NewCache(redisClient, cfg.ReportCacheTTL)
	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, financeCache)
	financeHandler := finance.NewHandler(financeService)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, catalogService, idempotency, metrics, cfg.StockRetryBudget)
	ordersService.SetReportInvalidator(financeService)
	ordersHandler := orders.NewHandler(ordersService)

	returnsRepo := returns.NewRepository(pool)
	returnsService := returns.NewService(returnsRepo, cfg.StockRetryBudget)
	returnsService.SetReportInvalidator(financeService)
	returnsHandler := returns.NewHandler(returnsService)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthService:    authService,
		AuthHandler:    authHandler,
		OrdersHandler:  ordersHandler,
		ReturnsHandler: returnsHandler,
		LedgerHandler:  ledgerHandler,
		FinanceHandler: financeHandler,
		CatalogHandler: catalogHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
