package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/mandi-erp/mandi/cmd/mandi/cli"
	"github.com/mandi-erp/mandi/internal/app"
	"github.com/mandi-erp/mandi/internal/audit"
	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/ledger"
	"github.com/mandi-erp/mandi/internal/masterdata/customers"
	"github.com/mandi-erp/mandi/internal/masterdata/products"
	"github.com/mandi-erp/mandi/internal/masterdata/vehicles"
	"github.com/mandi-erp/mandi/internal/masterdata/vendors"
	"github.com/mandi-erp/mandi/internal/observability"
	"github.com/mandi-erp/mandi/internal/platform/cache"
	"github.com/mandi-erp/mandi/internal/platform/db"
	"github.com/mandi-erp/mandi/internal/purchasing"
	"github.com/mandi-erp/mandi/internal/reports"
	"github.com/mandi-erp/mandi/internal/sales"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg.RedisAddr, os.Args[2:]))
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, job endpoints disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	mirror := stock.NewMirror(cfg.ProductPolicy(), logger, metrics)
	vehicleLedger := fleet.NewLedger(cfg.VehiclePolicy(), mirror, logger, metrics)

	productService := products.NewService(products.NewRepository(dbpool), mirror)
	vendorService := vendors.NewService(vendors.NewRepository(dbpool))
	customerService := customers.NewService(customers.NewRepository(dbpool))
	vehicleService := vehicles.NewService(vehicles.NewRepository(dbpool))

	stockService := stock.NewService(stock.NewRepository(dbpool), mirror, auditLogger, logger)
	fleetService := fleet.NewService(fleet.NewRepository(dbpool), vehicleLedger, auditLogger, logger)
	purchasingService := purchasing.NewService(purchasing.NewRepository(dbpool), vehicleLedger, mirror, auditLogger, idempotencyStore, logger)
	salesService := sales.NewService(sales.NewRepository(dbpool), vehicleLedger, mirror, auditLogger, idempotencyStore, logger)
	ledgerService := ledger.NewService(ledger.NewRepository(dbpool))
	reportsService := reports.NewService(reports.NewRepository(dbpool), logger)
	auditService := audit.NewService(audit.NewRepository(dbpool))

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(jobClient, inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		DB:                dbpool,
		ProductsHandler:   products.NewHandler(logger, productService),
		VendorsHandler:    vendors.NewHandler(logger, vendorService),
		CustomersHandler:  customers.NewHandler(logger, customerService),
		VehiclesHandler:   vehicles.NewHandler(logger, vehicleService),
		FleetHandler:      fleet.NewHandler(logger, fleetService),
		StockHandler:      stock.NewHandler(logger, stockService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		SalesHandler:      sales.NewHandler(logger, salesService),
		LedgerHandler:     ledger.NewHandler(ledgerService),
		ReportsHandler:    reports.NewHandler(reportsService),
		AuditHandler:      audit.NewHandler(auditService),
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("product_policy", string(cfg.ProductPolicy())),
			slog.String("vehicle_policy", string(cfg.VehiclePolicy())))
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

func runJobsCommand(ctx context.Context, redisAddr string, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer jobsCLI.Close()
	return jobsCLI.Run(ctx, os.Stdout, args)
}
