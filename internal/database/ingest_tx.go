// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// IngestEvent persists one failed login, refreshes its source IP's
// suspicious-ip cache, and touches the reporting host's last-seen
// timestamp, all inside a single transaction — the atomic unit ingestion
// relies on so a crash mid-write never leaves a logged event without its
// suspicious-ip rollup. Returns ErrDuplicateEvent if e's natural key
// already exists; the host is still touched and the transaction still
// commits in that case, since a resent duplicate is still a live host.
func (db *DB) IngestEvent(ctx context.Context, e models.FailedLogin, hostname, agentVersion string) error {
	start := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: ingest event: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQ = `
INSERT INTO failed_logins
	(host_id, source_ip, target_username, source_port, event_timestamp,
	 logon_type, failure_reason, workstation_name, fingerprint)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source_ip, target_username, source_port, event_timestamp, host_id) DO NOTHING
`
	res, err := tx.ExecContext(ctx, insertQ,
		e.HostID, e.SourceIP, e.TargetUsername, e.SourcePort, e.EventTimestamp,
		e.LogonType, e.FailureReason, e.WorkstationName, e.Fingerprint,
	)
	if err != nil {
		metrics.RecordDBQuery("insert", "failed_logins", time.Since(start), err)
		return fmt.Errorf("database: ingest event: insert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("database: ingest event: rows affected: %w", err)
	}
	duplicate := rows == 0

	if !duplicate {
		const upsertQ = `
INSERT INTO suspicious_ips (source_ip, first_seen_at, last_seen_at, lifetime_failure_count, distinct_hosts_attacked, distinct_users_tried)
VALUES (?, ?, ?, 1, 1, 1)
ON CONFLICT (source_ip) DO UPDATE SET
	last_seen_at = excluded.last_seen_at,
	lifetime_failure_count = suspicious_ips.lifetime_failure_count + 1
`
		if _, err := tx.ExecContext(ctx, upsertQ, e.SourceIP, e.EventTimestamp, e.EventTimestamp); err != nil {
			return fmt.Errorf("database: ingest event: upsert suspicious ip: %w", err)
		}

		const recountQ = `
UPDATE suspicious_ips SET
	distinct_hosts_attacked = (SELECT COUNT(DISTINCT host_id) FROM failed_logins WHERE source_ip = ?),
	distinct_users_tried = (SELECT COUNT(DISTINCT target_username) FROM failed_logins WHERE source_ip = ?)
WHERE source_ip = ?
`
		if _, err := tx.ExecContext(ctx, recountQ, e.SourceIP, e.SourceIP, e.SourceIP); err != nil {
			return fmt.Errorf("database: ingest event: recount suspicious ip: %w", err)
		}
	}

	now := time.Now()
	const touchQ = `
INSERT INTO hosts (host_id, hostname, collection_method, status, first_seen_at, last_seen_at, agent_version)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (host_id) DO UPDATE SET
	hostname = excluded.hostname,
	last_seen_at = excluded.last_seen_at,
	agent_version = excluded.agent_version
`
	if _, err := tx.ExecContext(ctx, touchQ, e.HostID, hostname, models.CollectionMethodAgent, models.HostStatusActive, now, now, agentVersion); err != nil {
		return fmt.Errorf("database: ingest event: touch host: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: ingest event: commit: %w", err)
	}

	metrics.RecordDBQuery("insert", "failed_logins", time.Since(start), nil)
	if duplicate {
		return ErrDuplicateEvent
	}
	return nil
}
