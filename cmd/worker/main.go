package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/bazarly/bazarly/internal/app"
	"github.com/bazarly/bazarly/internal/catalog"
	"github.com/bazarly/bazarly/internal/finance"
	"github.com/bazarly/bazarly/internal/observability"
	"github.com/bazarly/bazarly/internal/platform/db"
	"github.com/bazarly/bazarly/internal/shared"
	"github.com/bazarly/bazarly/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	financeCache := finance.NewCache(redisClient, cfg.ReportCacheTTL)
	financeService := finance.NewService(finance.NewRepository(pool), financeCache)
	idempotency := shared.NewIdempotencyStore(pool)

	lowStockJob := jobs.NewLowStockScanJob(catalogService, metrics, logger)
	cacheWarmJob := jobs.NewCacheWarmJob(financeService, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotency, logger)

	cron, err := jobs.DefaultCron()
	if err != nil {
		logger.Error("build cron schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
			{Type: jobs.TaskFinanceCacheWarm, Handler: cacheWarmJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
