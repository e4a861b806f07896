package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type TxContextKey string

const txKey = TxContextKey("tx-context-key")

// retryBaseDelay is the first backoff step after a serialization failure.
const retryBaseDelay = 10 * time.Millisecond

// TxFromContext returns the transaction opened by InTx for ctx, if any.
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// InTx runs fn in a transaction at the dialect's isolation level. A serialization
// failure rolls back and re-runs fn, up to txMaxAttempts times, with a Fibonacci
// backoff. Any other error rolls back and is returned unchanged.
func (db *DatabaseInstance) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	var err error
	a, b := 1, 1
	for attempt := 1; attempt <= db.txMaxAttempts; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
		if attempt == db.txMaxAttempts {
			break
		}

		wait := time.Duration(a) * retryBaseDelay
		db.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("Transaction conflicted with a concurrent writer, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("transaction failed after %d attempts: %w", db.txMaxAttempts, err)
}

func (db *DatabaseInstance) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: db.dialect.IsolationLevel()})
	if err != nil {
		db.logger.WithContext(ctx).WithError(err).Error("error while beginning transaction")
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.WithContext(ctx).WithError(rbErr).Error("error while rolling back transaction")
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.WithContext(ctx).WithError(err).Error("error while committing transaction")
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// IsSerializationFailure reports whether err is a conflict the store resolves by
// re-running the transaction: postgres serialization_failure / deadlock_detected,
// or a busy/locked sqlite database.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}

	return false
}

// IsNoRows reports whether err is the "no rows in result set" sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
