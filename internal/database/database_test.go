// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"testing"
	"time"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a throwaway in-memory DuckDB instance with migrations
// applied, closed automatically at test cleanup.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Hour,
	}
	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	var version int
	err := db.conn.QueryRowContext(context.Background(), `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestOpen_IdempotentOnReopen(t *testing.T) {
	// Running migrate() twice against the same schema must not error.
	db := openTestDB(t)
	require.NoError(t, db.migrate(context.Background()))
}

func TestIsTransactionConflict(t *testing.T) {
	require.False(t, isTransactionConflict(nil))
	require.True(t, isTransactionConflict(errConflictLike("Transaction conflict detected")))
	require.False(t, isTransactionConflict(errConflictLike("syntax error")))
}

func TestIsConnectionError(t *testing.T) {
	require.False(t, isConnectionError(nil))
	require.True(t, isConnectionError(errConflictLike("connection closed")))
}

func TestIsInternalError(t *testing.T) {
	require.True(t, isInternalError(errConflictLike("INTERNAL Error: assert")))
	require.False(t, isInternalError(errConflictLike("constraint violation")))
}

type errConflictLike string

func (e errConflictLike) Error() string { return string(e) }

func TestWithRetry_RetriesOnConflict(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return errConflictLike("Transaction conflict")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		return errConflictLike("constraint violation")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
