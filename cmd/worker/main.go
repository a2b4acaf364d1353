package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/mandi-erp/mandi/internal/app"
	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/observability"
	"github.com/mandi-erp/mandi/internal/platform/cache"
	"github.com/mandi-erp/mandi/internal/platform/db"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	mirror := stock.NewMirror(cfg.ProductPolicy(), logger, metrics)
	vehicleLedger := fleet.NewLedger(cfg.VehiclePolicy(), mirror, logger, metrics)
	stockService := stock.NewService(stock.NewRepository(pool), mirror, auditLogger, logger)
	fleetService := fleet.NewService(fleet.NewRepository(pool), vehicleLedger, auditLogger, logger)

	reconcile := jobs.NewReconcileHandler(stockService, fleetService, redislock.New(redisClient), cfg.ReconcileLockTTL, metrics, logger)

	cronTask, err := jobs.NewStockReconcileTask(jobs.TriggerCron, time.Now().UTC())
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockReconcile, Handler: reconcile},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: cronTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("cron", cfg.ReconcileCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
