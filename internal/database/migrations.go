// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/loginwatch/sentinel/internal/logging"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	name        VARCHAR NOT NULL,
	applied_at  TIMESTAMP NOT NULL DEFAULT now()
)`

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "initial_schema",
			Description: "failed logins, suspicious IPs, hosts, blocks, per-host policy, settings",
			SQL: `
CREATE SEQUENCE IF NOT EXISTS failed_logins_id_seq;
CREATE TABLE IF NOT EXISTS failed_logins (
	id               BIGINT PRIMARY KEY DEFAULT nextval('failed_logins_id_seq'),
	host_id          VARCHAR NOT NULL,
	source_ip        VARCHAR NOT NULL,
	target_username  VARCHAR NOT NULL,
	source_port      INTEGER NOT NULL DEFAULT 0,
	event_timestamp  TIMESTAMP NOT NULL,
	logon_type       INTEGER NOT NULL DEFAULT 0,
	failure_reason   VARCHAR,
	workstation_name VARCHAR,
	fingerprint      VARCHAR NOT NULL,
	received_at      TIMESTAMP NOT NULL DEFAULT now(),
	UNIQUE (source_ip, target_username, source_port, event_timestamp, host_id)
);
CREATE INDEX IF NOT EXISTS idx_failed_logins_source_ip_ts ON failed_logins (source_ip, event_timestamp);
CREATE INDEX IF NOT EXISTS idx_failed_logins_host_ts ON failed_logins (host_id, event_timestamp);

CREATE TABLE IF NOT EXISTS suspicious_ips (
	source_ip                VARCHAR PRIMARY KEY,
	first_seen_at             TIMESTAMP NOT NULL,
	last_seen_at              TIMESTAMP NOT NULL,
	lifetime_failure_count    BIGINT NOT NULL DEFAULT 0,
	distinct_hosts_attacked   INTEGER NOT NULL DEFAULT 0,
	distinct_users_tried      INTEGER NOT NULL DEFAULT 0,
	currently_blocked         BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS hosts (
	host_id           VARCHAR PRIMARY KEY,
	hostname          VARCHAR NOT NULL,
	host_ip           VARCHAR,
	collection_method VARCHAR NOT NULL DEFAULT 'agent',
	status            VARCHAR NOT NULL DEFAULT 'active',
	first_seen_at     TIMESTAMP NOT NULL,
	last_seen_at      TIMESTAMP NOT NULL,
	agent_version     VARCHAR
);

CREATE SEQUENCE IF NOT EXISTS blocks_id_seq;
CREATE TABLE IF NOT EXISTS blocks (
	id            BIGINT PRIMARY KEY DEFAULT nextval('blocks_id_seq'),
	source_ip     VARCHAR NOT NULL,
	scope         VARCHAR NOT NULL,
	host_id       VARCHAR,
	reason        VARCHAR NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT now(),
	expires_at    TIMESTAMP NOT NULL,
	released_at   TIMESTAMP,
	active        BOOLEAN NOT NULL DEFAULT true,
	failed_calls  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_blocks_active_ip ON blocks (source_ip, active);

CREATE TABLE IF NOT EXISTS per_host_policy (
	host_id          VARCHAR PRIMARY KEY,
	threshold        INTEGER NOT NULL,
	window_seconds   INTEGER NOT NULL,
	block_duration_seconds INTEGER NOT NULL,
	detection_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS settings (
	key   VARCHAR PRIMARY KEY,
	value VARCHAR NOT NULL
);
`,
		},
	}
}

// migrate applies every migration with a version greater than the highest
// recorded version, in order.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	row := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read current schema version: %w", err)
	}

	for _, m := range getMigrations() {
		if m.Version <= current {
			continue
		}
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("applied migration")
	}

	return nil
}
