// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loginwatch/sentinel/internal/models"
)

// CreateBlock inserts a new active block row.
func (db *DB) CreateBlock(ctx context.Context, b models.Block) (models.Block, error) {
	const q = `
INSERT INTO blocks (source_ip, scope, host_id, reason, expires_at, active)
VALUES (?, ?, NULLIF(?, ''), ?, ?, true)
RETURNING id, created_at
`
	err := db.conn.QueryRowContext(ctx, q, b.SourceIP, string(b.Scope), b.HostID, b.Reason, b.ExpiresAt).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return models.Block{}, fmt.Errorf("database: create block: %w", err)
	}
	b.Active = true
	return b, nil
}

// GetActiveGlobalBlock returns the active global-scope block for sourceIP,
// if one exists.
func (db *DB) GetActiveGlobalBlock(ctx context.Context, sourceIP string) (models.Block, error) {
	const q = `
SELECT id, source_ip, scope, COALESCE(host_id, ''), reason, created_at, expires_at, released_at, active, failed_calls
FROM blocks
WHERE source_ip = ? AND scope = 'global' AND active = true
LIMIT 1
`
	return scanBlock(db.conn.QueryRowContext(ctx, q, sourceIP))
}

// GetActivePerHostBlock returns the active per-host block for (sourceIP,
// hostID), if one exists.
func (db *DB) GetActivePerHostBlock(ctx context.Context, sourceIP, hostID string) (models.Block, error) {
	const q = `
SELECT id, source_ip, scope, COALESCE(host_id, ''), reason, created_at, expires_at, released_at, active, failed_calls
FROM blocks
WHERE source_ip = ? AND host_id = ? AND scope = 'per_host' AND active = true
LIMIT 1
`
	return scanBlock(db.conn.QueryRowContext(ctx, q, sourceIP, hostID))
}

func scanBlock(row *sql.Row) (models.Block, error) {
	var b models.Block
	var scope string
	var released sql.NullTime
	err := row.Scan(&b.ID, &b.SourceIP, &scope, &b.HostID, &b.Reason, &b.CreatedAt, &b.ExpiresAt, &released, &b.Active, &b.FailedCalls)
	if err != nil {
		return models.Block{}, err
	}
	b.Scope = models.BlockScope(scope)
	if released.Valid {
		b.ReleasedAt = &released.Time
	}
	return b, nil
}

// ListActiveBlocksForIP returns every currently-active block for sourceIP,
// across both scopes.
func (db *DB) ListActiveBlocksForIP(ctx context.Context, sourceIP string) ([]models.Block, error) {
	const q = `
SELECT id, source_ip, scope, COALESCE(host_id, ''), reason, created_at, expires_at, released_at, active, failed_calls
FROM blocks WHERE source_ip = ? AND active = true
`
	rows, err := db.conn.QueryContext(ctx, q, sourceIP)
	if err != nil {
		return nil, fmt.Errorf("database: list active blocks for ip: %w", err)
	}
	defer rows.Close()

	var out []models.Block
	for rows.Next() {
		var b models.Block
		var scope string
		var released sql.NullTime
		if err := rows.Scan(&b.ID, &b.SourceIP, &scope, &b.HostID, &b.Reason, &b.CreatedAt, &b.ExpiresAt, &released, &b.Active, &b.FailedCalls); err != nil {
			return nil, fmt.Errorf("database: scan block: %w", err)
		}
		b.Scope = models.BlockScope(scope)
		if released.Valid {
			b.ReleasedAt = &released.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListActiveBlocks returns every currently-active block.
func (db *DB) ListActiveBlocks(ctx context.Context) ([]models.Block, error) {
	const q = `
SELECT id, source_ip, scope, COALESCE(host_id, ''), reason, created_at, expires_at, released_at, active, failed_calls
FROM blocks WHERE active = true ORDER BY created_at DESC
`
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("database: list active blocks: %w", err)
	}
	defer rows.Close()

	var out []models.Block
	for rows.Next() {
		var b models.Block
		var scope string
		var released sql.NullTime
		if err := rows.Scan(&b.ID, &b.SourceIP, &scope, &b.HostID, &b.Reason, &b.CreatedAt, &b.ExpiresAt, &released, &b.Active, &b.FailedCalls); err != nil {
			return nil, fmt.Errorf("database: scan block: %w", err)
		}
		b.Scope = models.BlockScope(scope)
		if released.Valid {
			b.ReleasedAt = &released.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListExpiredActiveBlocks returns active blocks whose expires_at has
// already passed — the reconciler's input.
func (db *DB) ListExpiredActiveBlocks(ctx context.Context) ([]models.Block, error) {
	const q = `
SELECT id, source_ip, scope, COALESCE(host_id, ''), reason, created_at, expires_at, released_at, active, failed_calls
FROM blocks WHERE active = true AND expires_at <= ?
`
	rows, err := db.conn.QueryContext(ctx, q, time.Now())
	if err != nil {
		return nil, fmt.Errorf("database: list expired blocks: %w", err)
	}
	defer rows.Close()

	var out []models.Block
	for rows.Next() {
		var b models.Block
		var scope string
		var released sql.NullTime
		if err := rows.Scan(&b.ID, &b.SourceIP, &scope, &b.HostID, &b.Reason, &b.CreatedAt, &b.ExpiresAt, &released, &b.Active, &b.FailedCalls); err != nil {
			return nil, fmt.Errorf("database: scan expired block: %w", err)
		}
		b.Scope = models.BlockScope(scope)
		if released.Valid {
			b.ReleasedAt = &released.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReleaseBlock marks a block inactive and stamps released_at.
func (db *DB) ReleaseBlock(ctx context.Context, id int64) error {
	const q = `UPDATE blocks SET active = false, released_at = ? WHERE id = ?`
	_, err := db.conn.ExecContext(ctx, q, time.Now(), id)
	if err != nil {
		return fmt.Errorf("database: release block: %w", err)
	}
	return nil
}

// IncrementBlockFailedCalls adds one to the block's failed_calls count.
// Nothing resets the count, so it totals every recorded apply failure
// since the block was created.
func (db *DB) IncrementBlockFailedCalls(ctx context.Context, id int64) error {
	const q = `UPDATE blocks SET failed_calls = failed_calls + 1 WHERE id = ?`
	_, err := db.conn.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("database: increment block failed calls: %w", err)
	}
	return nil
}
