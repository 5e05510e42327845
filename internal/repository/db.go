package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same repository
// code runs standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const retryBackoff = 150 * time.Millisecond

// withRetry re-runs fn once, after a short backoff, when the first attempt
// failed before the statement reached the server. pgconn.SafeToRetry is the
// only signal that makes a blind retry safe for writes.
func withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !pgconn.SafeToRetry(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(retryBackoff):
	}
	return fn()
}
