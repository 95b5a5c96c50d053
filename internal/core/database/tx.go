package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/bareeqalyusr/bnpl-backend/internal"
)

// Postgres SQLSTATE codes that signal a transient conflict worth retrying.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// InTx runs fn inside a database transaction, retrying up to attempts times
// when the transaction aborts on a serialization conflict or deadlock. Any
// other failure rolls back and returns immediately; after the retry budget is
// exhausted the caller gets a CONFLICT error.
func InTx(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx)
		})
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return internal.ErrConflict.WithCause(err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}
