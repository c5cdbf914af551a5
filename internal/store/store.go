package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so a store can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(...any) error }

// InTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CallPolicy bounds a single logical call to the backing store.
type CallPolicy struct {
	Timeout time.Duration
	Backoff time.Duration
}

// DefaultCallPolicy is a 10s bound with a short pause before the one retry.
var DefaultCallPolicy = CallPolicy{Timeout: 10 * time.Second, Backoff: 100 * time.Millisecond}

// Call runs fn with the policy's timeout. A transient failure (busy/locked
// database, per-attempt timeout) is retried once; anything else, including
// validation and lifecycle errors, is returned as-is. Exhausted transient
// failures are wrapped with apperr.ErrTransient or apperr.ErrTimeout while
// preserving the cause.
func Call(ctx context.Context, p CallPolicy, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		p.Timeout = DefaultCallPolicy.Timeout
	}
	backoff := retry.WithMaxRetries(1, retry.NewConstant(max(p.Backoff, time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		err := fn(attemptCtx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			// The caller gave up; do not retry.
			return err
		case errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded:
			return retry.RetryableError(fmt.Errorf("%w: %w", apperr.ErrTimeout, err))
		case IsTransient(err):
			return retry.RetryableError(fmt.Errorf("%w: %w", apperr.ErrTransient, err))
		}
		return err
	})
}

// IsTransient reports whether err is a SQLite busy or locked condition.
func IsTransient(err error) bool {
	if errors.Is(err, apperr.ErrTransient) {
		return true
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
