// Package pgtest opens a migrated PostgreSQL schema for repository tests.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mandi-erp/mandi/internal/platform/db"
	"github.com/mandi-erp/mandi/migrations"
)

// EnvDSN names the variable holding the test database URL.
const EnvDSN = "TEST_DATABASE_URL"

// Open recreates schema on the test database, applies the embedded
// migrations into it and returns a pool whose search_path points at it.
// The test is skipped when TEST_DATABASE_URL is unset. Each package should
// use its own schema so packages can run concurrently.
func Open(t testing.TB, schema string) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skip(EnvDSN + " not set, skipping postgres test")
	}
	ctx := context.Background()
	ident := pgx.Identifier{schema}.Sanitize()

	admin, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	defer admin.Close()
	if _, err := admin.Exec(ctx, `DROP SCHEMA IF EXISTS `+ident+` CASCADE`); err != nil {
		t.Fatalf("drop schema %s: %v", schema, err)
	}
	if _, err := admin.Exec(ctx, `CREATE SCHEMA `+ident); err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse test database url: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open test pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.Migrate(ctx, pool, migrations.FS); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	return pool
}
