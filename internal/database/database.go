// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/logging"
)

// DB wraps a DuckDB connection pool with the collector's query surface.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the DuckDB file at cfg.Path, applies
// connection pool tuning, and runs pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Path, err)
	}

	configureConnectionPool(conn, cfg)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("database opened")
	return db, nil
}

// configureConnectionPool sets sane defaults for an embedded analytical
// database: few connections, since DuckDB serializes writers internally.
func configureConnectionPool(conn *sql.DB, cfg config.DatabaseConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the raw *sql.DB for packages that need direct query access
// (e.g. detection's windowed counts).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping reports whether the database connection is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// isConnectionError reports whether err indicates a lost connection,
// distinct from a query-level failure (constraint violation, bad SQL).
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return stringContains(msg, "connection") || stringContains(msg, "broken pipe") ||
		stringContains(msg, "closed")
}

// isTransactionConflict reports whether err is DuckDB's optimistic
// concurrency conflict, which callers should retry rather than surface.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return stringContains(msg, "Transaction conflict") || stringContains(msg, "conflict")
}

// isInternalError reports whether err is a DuckDB internal error rather
// than a caller mistake (bad SQL, constraint violation).
func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	return stringContains(err.Error(), "INTERNAL")
}

func stringContains(s, substr string) bool {
	return stringIndexOf(s, substr) >= 0
}

func stringIndexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

// withRetry retries fn once on a transaction conflict, per DuckDB's
// optimistic concurrency model.
func withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err != nil && isTransactionConflict(err) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
		err = fn()
	}
	return err
}
