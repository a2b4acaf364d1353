package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandi-erp/mandi/internal/shared"
)

// WithTx executes a function within a read-committed transaction. Stock rows
// are serialised with SELECT ... FOR UPDATE, which under this level always
// reads the latest committed version instead of failing with a
// serialization error.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// MapError translates constraint violations into shared sentinels.
func MapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", shared.ErrDuplicate, pgErr.ConstraintName)
	case "23503":
		if pgErr.Message != "" && isDeleteViolation(pgErr) {
			return fmt.Errorf("%w: still referenced by %s", shared.ErrConflict, pgErr.TableName)
		}
		return fmt.Errorf("%w: %s", shared.ErrNotFound, pgErr.ConstraintName)
	case "23514":
		return fmt.Errorf("%w: %s", shared.ErrValidation, pgErr.ConstraintName)
	case "23502":
		return fmt.Errorf("%w: %s is required", shared.ErrValidation, pgErr.ColumnName)
	default:
		return err
	}
}

// isDeleteViolation distinguishes "update or delete ... violates" from
// "insert or update ... violates" foreign key messages.
func isDeleteViolation(pgErr *pgconn.PgError) bool {
	const prefix = "update or delete on table"
	return len(pgErr.Message) >= len(prefix) && pgErr.Message[:len(prefix)] == prefix
}
