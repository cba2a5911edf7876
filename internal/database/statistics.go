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

// GetStatistics aggregates collector-wide failed-login activity.
func (db *DB) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics

	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT source_ip) FROM failed_logins`,
	).Scan(&stats.TotalFailedAttempts, &stats.UniqueSourceIPs)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("database: statistics totals: %w", err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocks WHERE active = true`,
	).Scan(&stats.ActiveBlockCount)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("database: statistics active blocks: %w", err)
	}

	now := time.Now()
	if stats.Last24h, err = db.countSince(ctx, "", now.Add(-24*time.Hour)); err != nil {
		return models.Statistics{}, err
	}
	if stats.LastHour, err = db.countSince(ctx, "", now.Add(-time.Hour)); err != nil {
		return models.Statistics{}, err
	}

	if stats.TopUsernames, err = db.topUsernames(ctx, "", 10); err != nil {
		return models.Statistics{}, err
	}
	if stats.HourlyHistogram, err = db.hourlyHistogram(ctx, ""); err != nil {
		return models.Statistics{}, err
	}

	return stats, nil
}

// GetGlobalStatistics extends GetStatistics with a per-host breakdown and
// active/inactive host counts. A host is active if it has been seen in the
// last 24 hours.
func (db *DB) GetGlobalStatistics(ctx context.Context) (models.GlobalStatistics, error) {
	base, err := db.GetStatistics(ctx)
	if err != nil {
		return models.GlobalStatistics{}, err
	}

	rows, err := db.conn.QueryContext(ctx, `
SELECT h.host_id, h.hostname, COUNT(f.id)
FROM hosts h
LEFT JOIN failed_logins f ON f.host_id = h.host_id
GROUP BY h.host_id, h.hostname
ORDER BY COUNT(f.id) DESC
`)
	if err != nil {
		return models.GlobalStatistics{}, fmt.Errorf("database: global statistics per-host: %w", err)
	}
	defer rows.Close()

	var perHost []models.HostBreakdown
	for rows.Next() {
		var hb models.HostBreakdown
		if err := rows.Scan(&hb.HostID, &hb.Hostname, &hb.TotalFailedAttempts); err != nil {
			return models.GlobalStatistics{}, fmt.Errorf("database: global statistics scan: %w", err)
		}
		perHost = append(perHost, hb)
	}
	if err := rows.Err(); err != nil {
		return models.GlobalStatistics{}, err
	}

	var activeHosts int
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hosts WHERE last_seen_at >= ?`, time.Now().Add(-24*time.Hour),
	).Scan(&activeHosts)
	if err != nil {
		return models.GlobalStatistics{}, fmt.Errorf("database: global statistics active hosts: %w", err)
	}

	return models.GlobalStatistics{
		Statistics:    base,
		PerHost:       perHost,
		ActiveHosts:   activeHosts,
		InactiveHosts: len(perHost) - activeHosts,
	}, nil
}

// GetHostAttacks summarizes one host's attack activity. A host with no
// failed_logins rows yields a zero-value projection with HostID set, not
// an error.
func (db *DB) GetHostAttacks(ctx context.Context, hostID string) (models.HostAttackStats, error) {
	stats := models.HostAttackStats{HostID: hostID}

	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT source_ip) FROM failed_logins WHERE host_id = ?`, hostID,
	).Scan(&stats.TotalFailedAttempts, &stats.UniqueAttackers)
	if err != nil {
		return models.HostAttackStats{}, fmt.Errorf("database: host attacks totals: %w", err)
	}

	now := time.Now()
	if stats.Last24h, err = db.countSince(ctx, hostID, now.Add(-24*time.Hour)); err != nil {
		return models.HostAttackStats{}, err
	}
	if stats.LastHour, err = db.countSince(ctx, hostID, now.Add(-time.Hour)); err != nil {
		return models.HostAttackStats{}, err
	}

	if stats.TopUsernames, err = db.topUsernames(ctx, hostID, 10); err != nil {
		return models.HostAttackStats{}, err
	}
	if stats.TopSourceIPs, err = db.topSourceIPs(ctx, hostID, 10); err != nil {
		return models.HostAttackStats{}, err
	}

	return stats, nil
}

// countSince counts failed_logins at or after since, optionally scoped to
// hostID (empty means collector-wide).
func (db *DB) countSince(ctx context.Context, hostID string, since time.Time) (int64, error) {
	var count int64
	var err error
	if hostID == "" {
		err = db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM failed_logins WHERE event_timestamp >= ?`, since,
		).Scan(&count)
	} else {
		err = db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM failed_logins WHERE host_id = ? AND event_timestamp >= ?`, hostID, since,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("database: count since: %w", err)
	}
	return count, nil
}

func (db *DB) topUsernames(ctx context.Context, hostID string, limit int) ([]models.UsernameCount, error) {
	var rows *sql.Rows
	var err error
	if hostID == "" {
		rows, err = db.conn.QueryContext(ctx, `
SELECT target_username, COUNT(*) AS c FROM failed_logins
GROUP BY target_username ORDER BY c DESC LIMIT ?`, limit)
	} else {
		rows, err = db.conn.QueryContext(ctx, `
SELECT target_username, COUNT(*) AS c FROM failed_logins
WHERE host_id = ? GROUP BY target_username ORDER BY c DESC LIMIT ?`, hostID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("database: top usernames: %w", err)
	}
	defer rows.Close()

	var out []models.UsernameCount
	for rows.Next() {
		var uc models.UsernameCount
		if err := rows.Scan(&uc.Username, &uc.Count); err != nil {
			return nil, fmt.Errorf("database: scan top username: %w", err)
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

func (db *DB) topSourceIPs(ctx context.Context, hostID string, limit int) ([]models.SourceIPCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
SELECT source_ip, COUNT(*) AS c FROM failed_logins
WHERE host_id = ? GROUP BY source_ip ORDER BY c DESC LIMIT ?`, hostID, limit)
	if err != nil {
		return nil, fmt.Errorf("database: top source ips: %w", err)
	}
	defer rows.Close()

	var out []models.SourceIPCount
	for rows.Next() {
		var sc models.SourceIPCount
		if err := rows.Scan(&sc.SourceIP, &sc.Count); err != nil {
			return nil, fmt.Errorf("database: scan top source ip: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// hourlyHistogram returns 24 fixed hourly buckets ending at the current
// hour, zero-filled where no events occurred, optionally scoped to hostID.
func (db *DB) hourlyHistogram(ctx context.Context, hostID string) ([]models.HourlyBucket, error) {
	now := time.Now().Truncate(time.Hour)
	start := now.Add(-23 * time.Hour)

	counts := make(map[time.Time]int64, 24)
	var rows *sql.Rows
	var err error
	if hostID == "" {
		rows, err = db.conn.QueryContext(ctx, `
SELECT date_trunc('hour', event_timestamp) AS bucket, COUNT(*)
FROM failed_logins WHERE event_timestamp >= ?
GROUP BY bucket`, start)
	} else {
		rows, err = db.conn.QueryContext(ctx, `
SELECT date_trunc('hour', event_timestamp) AS bucket, COUNT(*)
FROM failed_logins WHERE host_id = ? AND event_timestamp >= ?
GROUP BY bucket`, hostID, start)
	}
	if err != nil {
		return nil, fmt.Errorf("database: hourly histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket time.Time
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("database: scan hourly bucket: %w", err)
		}
		counts[bucket.UTC()] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.HourlyBucket, 0, 24)
	for i := 0; i < 24; i++ {
		hour := start.Add(time.Duration(i) * time.Hour).UTC()
		out = append(out, models.HourlyBucket{Hour: hour, Count: counts[hour]})
	}
	return out, nil
}
