package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mandi-erp/mandi/internal/app"
	"github.com/mandi-erp/mandi/internal/platform/db"
	"github.com/mandi-erp/mandi/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err), slog.Any("applied", applied))
		pool.Close()
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.Int("count", len(applied)), slog.Any("versions", applied))
}
