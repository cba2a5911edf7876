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

// UpsertHost touches hostID's last_seen_at/agent_version on an ingested
// event, registering it with default host_ip/collection_method/status if
// it doesn't already exist. It never overwrites a host_ip or
// collection_method set by an earlier explicit RegisterHost call.
func (db *DB) UpsertHost(ctx context.Context, hostID, hostname, agentVersion string) error {
	now := time.Now()
	const q = `
INSERT INTO hosts (host_id, hostname, collection_method, status, first_seen_at, last_seen_at, agent_version)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (host_id) DO UPDATE SET
	hostname = excluded.hostname,
	last_seen_at = excluded.last_seen_at,
	agent_version = excluded.agent_version
`
	_, err := db.conn.ExecContext(ctx, q, hostID, hostname, models.CollectionMethodAgent, models.HostStatusActive, now, now, agentVersion)
	if err != nil {
		return fmt.Errorf("database: upsert host: %w", err)
	}
	return nil
}

// RegisterHost explicitly registers hostID with its network identity and
// collection method, setting it active. A later call updates hostname,
// host_ip, and collection_method but leaves first_seen_at untouched.
func (db *DB) RegisterHost(ctx context.Context, hostID, hostname, hostIP, collectionMethod string) error {
	now := time.Now()
	const q = `
INSERT INTO hosts (host_id, hostname, host_ip, collection_method, status, first_seen_at, last_seen_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (host_id) DO UPDATE SET
	hostname = excluded.hostname,
	host_ip = excluded.host_ip,
	collection_method = excluded.collection_method,
	status = excluded.status,
	last_seen_at = excluded.last_seen_at
`
	_, err := db.conn.ExecContext(ctx, q, hostID, hostname, hostIP, collectionMethod, models.HostStatusActive, now, now)
	if err != nil {
		return fmt.Errorf("database: register host: %w", err)
	}
	return nil
}

const hostColumns = `host_id, hostname, host_ip, collection_method, status, first_seen_at, last_seen_at, agent_version`

func scanHost(row interface{ Scan(...interface{}) error }) (models.Host, error) {
	var h models.Host
	var hostIP sql.NullString
	err := row.Scan(&h.HostID, &h.Hostname, &hostIP, &h.CollectionMethod, &h.Status, &h.FirstSeenAt, &h.LastSeenAt, &h.AgentVersion)
	h.HostIP = hostIP.String
	return h, err
}

// GetHost returns one host, or sql.ErrNoRows if unknown.
func (db *DB) GetHost(ctx context.Context, hostID string) (models.Host, error) {
	q := fmt.Sprintf(`SELECT %s FROM hosts WHERE host_id = ?`, hostColumns)
	return scanHost(db.conn.QueryRowContext(ctx, q, hostID))
}

// ListHosts returns every registered host.
func (db *DB) ListHosts(ctx context.Context) ([]models.Host, error) {
	q := fmt.Sprintf(`SELECT %s FROM hosts ORDER BY last_seen_at DESC`, hostColumns)
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("database: list hosts: %w", err)
	}
	defer rows.Close()

	var out []models.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("database: scan host: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeregisterHost removes hostID's registration and per-host policy
// override. Its historical failed_logins rows are left intact — the
// natural key dedup and the windowed counts still need them.
func (db *DB) DeregisterHost(ctx context.Context, hostID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: deregister host: begin: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM hosts WHERE host_id = ?`, hostID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("database: deregister host: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("database: deregister host: rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM per_host_policy WHERE host_id = ?`, hostID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("database: deregister host: per-host policy: %w", err)
	}

	return tx.Commit()
}

// GetPerHostPolicy returns hostID's threshold override, or sql.ErrNoRows if
// none is set (caller should fall back to the collector-wide default).
func (db *DB) GetPerHostPolicy(ctx context.Context, hostID string) (models.PerHostPolicy, error) {
	const q = `
SELECT host_id, threshold, window_seconds, block_duration_seconds, detection_active
FROM per_host_policy WHERE host_id = ?
`
	var p models.PerHostPolicy
	var windowSec, blockSec int
	err := db.conn.QueryRowContext(ctx, q, hostID).Scan(&p.HostID, &p.Threshold, &windowSec, &blockSec, &p.DetectionActive)
	if err != nil {
		return models.PerHostPolicy{}, err
	}
	p.Window = time.Duration(windowSec) * time.Second
	p.BlockDuration = time.Duration(blockSec) * time.Second
	return p, nil
}

// SetPerHostPolicy creates or replaces hostID's threshold override.
func (db *DB) SetPerHostPolicy(ctx context.Context, p models.PerHostPolicy) error {
	const q = `
INSERT INTO per_host_policy (host_id, threshold, window_seconds, block_duration_seconds, detection_active)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (host_id) DO UPDATE SET
	threshold = excluded.threshold,
	window_seconds = excluded.window_seconds,
	block_duration_seconds = excluded.block_duration_seconds,
	detection_active = excluded.detection_active
`
	_, err := db.conn.ExecContext(ctx, q, p.HostID, p.Threshold,
		int(p.Window.Seconds()), int(p.BlockDuration.Seconds()), p.DetectionActive)
	if err != nil {
		return fmt.Errorf("database: set per-host policy: %w", err)
	}
	return nil
}
