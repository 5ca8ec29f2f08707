package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTxConflict is returned when a transaction kept losing against
// concurrent writers after exhausting its retry budget.
var ErrTxConflict = errors.New("platform/db: transaction conflict")

// DBTX is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
// Repository code written against it runs both standalone and inside an
// enclosing transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// WithTxRetry runs fn like WithTx but retries serialization failures and
// deadlocks up to maxRetries times before surfacing ErrTxConflict.
func WithTxRetry(ctx context.Context, pool *pgxpool.Pool, maxRetries int, fn func(pgx.Tx) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = WithTx(ctx, pool, fn)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTxConflict, err)
}

// retryable reports whether the error is a PostgreSQL serialization
// failure (40001) or deadlock (40P01).
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
