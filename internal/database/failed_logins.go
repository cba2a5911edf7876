// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// ErrDuplicateEvent is returned by InsertFailedLogin when the event's
// natural key already exists.
var ErrDuplicateEvent = errors.New("database: duplicate failed login event")

// InsertFailedLogin inserts one event, returning ErrDuplicateEvent if its
// natural key (source_ip, target_username, source_port, event_timestamp,
// host_id) already exists. Idempotent by design: agents resend on retry.
func (db *DB) InsertFailedLogin(ctx context.Context, e models.FailedLogin) error {
	start := time.Now()
	const q = `
INSERT INTO failed_logins
	(host_id, source_ip, target_username, source_port, event_timestamp,
	 logon_type, failure_reason, workstation_name, fingerprint)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source_ip, target_username, source_port, event_timestamp, host_id) DO NOTHING
`
	res, err := db.conn.ExecContext(ctx, q,
		e.HostID, e.SourceIP, e.TargetUsername, e.SourcePort, e.EventTimestamp,
		e.LogonType, e.FailureReason, e.WorkstationName, e.Fingerprint,
	)
	metrics.RecordDBQuery("insert", "failed_logins", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: insert failed login: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("database: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// CountFailedLoginsInWindow returns the number of rows for sourceIP with
// event_timestamp within [now-window, now]. This always queries raw rows —
// never the SuspiciousIP cache — since detection rules need an exact
// rolling-window count.
func (db *DB) CountFailedLoginsInWindow(ctx context.Context, sourceIP string, window time.Duration) (int64, error) {
	start := time.Now()
	const q = `
SELECT COUNT(*) FROM failed_logins
WHERE source_ip = ? AND event_timestamp >= ? AND event_timestamp <= ?
`
	now := time.Now()
	since := now.Add(-window)
	var count int64
	err := db.conn.QueryRowContext(ctx, q, sourceIP, since, now).Scan(&count)
	metrics.RecordDBQuery("select", "failed_logins", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("database: count failed logins: %w", err)
	}
	return count, nil
}

// CountFailedLoginsForHostInWindow returns the number of rows for
// (sourceIP, hostID) within the window — the per-host detection rule's input.
func (db *DB) CountFailedLoginsForHostInWindow(ctx context.Context, sourceIP, hostID string, window time.Duration) (int64, error) {
	start := time.Now()
	const q = `
SELECT COUNT(*) FROM failed_logins
WHERE source_ip = ? AND host_id = ? AND event_timestamp >= ? AND event_timestamp <= ?
`
	now := time.Now()
	since := now.Add(-window)
	var count int64
	err := db.conn.QueryRowContext(ctx, q, sourceIP, hostID, since, now).Scan(&count)
	metrics.RecordDBQuery("select", "failed_logins", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("database: count failed logins for host: %w", err)
	}
	return count, nil
}

// ListRecentFailedLogins returns up to limit events for sourceIP, newest first.
func (db *DB) ListRecentFailedLogins(ctx context.Context, sourceIP string, limit int) ([]models.FailedLogin, error) {
	const q = `
SELECT id, host_id, source_ip, target_username, source_port, event_timestamp,
       logon_type, failure_reason, workstation_name, fingerprint, received_at
FROM failed_logins
WHERE source_ip = ?
ORDER BY event_timestamp DESC
LIMIT ?
`
	rows, err := db.conn.QueryContext(ctx, q, sourceIP, limit)
	if err != nil {
		return nil, fmt.Errorf("database: list recent failed logins: %w", err)
	}
	defer rows.Close()

	var out []models.FailedLogin
	for rows.Next() {
		var e models.FailedLogin
		var failureReason, workstation sql.NullString
		if err := rows.Scan(&e.ID, &e.HostID, &e.SourceIP, &e.TargetUsername, &e.SourcePort,
			&e.EventTimestamp, &e.LogonType, &failureReason, &workstation, &e.Fingerprint, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("database: scan failed login: %w", err)
		}
		e.FailureReason = failureReason.String
		e.WorkstationName = workstation.String
		out = append(out, e)
	}
	return out, rows.Err()
}
