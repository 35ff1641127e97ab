// Package pgtx holds helpers shared by repositories that mutate a cashier session's rows.
package pgtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brewpos/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the settlement path reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeLockNotAvailable     = "55P03"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeQueryCanceled        = "57014"
)

// LockSession takes a transaction-scoped advisory lock on the session.
// Mutations of the same cart serialize here; other sessions are unaffected.
func LockSession(ctx context.Context, tx pgx.Tx, sessionID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID); err != nil {
		return fmt.Errorf("lock session: %w", Classify(err))
	}
	return nil
}

// SetLockTimeout bounds how long statements in tx wait for row and advisory locks.
func SetLockTimeout(ctx context.Context, tx pgx.Tx, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	// SET does not accept bind parameters.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

// Classify maps lock and serialization failures to domain.ErrCommitConflict.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrCommitConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeLockNotAvailable, CodeSerializationFailure, CodeDeadlockDetected, CodeQueryCanceled:
			return fmt.Errorf("%w: %s", domain.ErrCommitConflict, pgErr.Message)
		}
	}
	return err
}

// UniqueViolation reports the violated constraint name when err is a 23505.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
