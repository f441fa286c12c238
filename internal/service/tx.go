package service

import (
	"context"
	"errors"
	"time"

	"syncboard/internal/domain"
	"syncboard/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxAttempts = 3

// runInTx executes fn inside one transaction, retrying with exponential
// backoff when the database reports a serialization failure or deadlock, or
// when the post-write marker verification signals a conflict. Validation
// errors from fn abort immediately; exhausted retries surface as
// ErrWriteConflict.
func runInTx(ctx context.Context, db *pgxpool.Pool, maxAttempts int, fn func(tx pgx.Tx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(50 * time.Millisecond << attempt):
			case <-ctx.Done():
				return ctx.Err()
			}
			logger.Warn("retrying transaction", "attempt", attempt+1)
		}

		err = attemptTx(ctx, db, fn)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return domain.ErrWriteConflict
}

func attemptTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func retryable(err error) bool {
	if errors.Is(err, domain.ErrWriteConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
