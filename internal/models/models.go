// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package models defines the data types shared by the agent, the collector,
// and the query API.
package models

import "time"

// FailedLogin is one failed logon event as observed on a Windows host.
// The tuple (SourceIP, TargetUsername, SourcePort, EventTimestamp, HostID)
// is the natural key the collector dedups on.
type FailedLogin struct {
	ID              int64     `json:"id"`
	HostID          string    `json:"host_id" validate:"required"`
	SourceIP        string    `json:"source_ip" validate:"required,ip"`
	TargetUsername  string    `json:"target_username" validate:"required"`
	SourcePort      int       `json:"source_port"`
	EventTimestamp  time.Time `json:"event_timestamp" validate:"required"`
	LogonType       int       `json:"logon_type"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	WorkstationName string    `json:"workstation_name,omitempty"`
	Fingerprint     string    `json:"fingerprint" validate:"required,len=64"`
	ReceivedAt      time.Time `json:"received_at"`
}

// SuspiciousIP is the detection engine's running verdict on a source IP.
// LifetimeFailureCount is a cached running total, never a substitute for
// a fresh windowed count when a detection rule needs to fire.
type SuspiciousIP struct {
	SourceIP              string    `json:"source_ip"`
	FirstSeenAt           time.Time `json:"first_seen_at"`
	LastSeenAt            time.Time `json:"last_seen_at"`
	LifetimeFailureCount  int64     `json:"lifetime_failure_count"`
	DistinctHostsAttacked int       `json:"distinct_hosts_attacked"`
	DistinctUsersTried    int       `json:"distinct_users_tried"`
	CurrentlyBlocked      bool      `json:"currently_blocked"`
}

// Host collection methods.
const (
	CollectionMethodAgent     = "agent"
	CollectionMethodForwarded = "forwarded"
)

// Host status values.
const (
	HostStatusActive   = "active"
	HostStatusInactive = "inactive"
	HostStatusError    = "error"
)

// Host is a registered Windows host reporting failed logons, either
// directly through the agent or via a forwarding collector.
type Host struct {
	HostID           string    `json:"host_id"`
	Hostname         string    `json:"hostname"`
	HostIP           string    `json:"host_ip,omitempty"`
	CollectionMethod string    `json:"collection_method"`
	Status           string    `json:"status"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	AgentVersion     string    `json:"agent_version"`
}

// BlockScope distinguishes a block that applies collector-wide from one
// that applies to a single host's policy.
type BlockScope string

const (
	BlockScopeGlobal  BlockScope = "global"
	BlockScopePerHost BlockScope = "per_host"
)

// Block is one active or historical IP block.
type Block struct {
	ID          int64      `json:"id"`
	SourceIP    string     `json:"source_ip"`
	Scope       BlockScope `json:"scope"`
	HostID      string     `json:"host_id,omitempty"` // set when Scope == BlockScopePerHost
	Reason      string     `json:"reason"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	Active      bool       `json:"active"`
	FailedCalls int        `json:"failed_calls"` // transient firewall apply failures recorded since creation; never reset
}

// PerHostPolicy overrides the global detection thresholds for one host.
type PerHostPolicy struct {
	HostID          string        `json:"host_id"`
	Threshold       int           `json:"threshold"`
	Window          time.Duration `json:"window"`
	BlockDuration   time.Duration `json:"block_duration"`
	DetectionActive bool          `json:"detection_active"`
}

// Settings is the collector's runtime-tunable global configuration,
// persisted as key/value rows so it can be read and updated through the
// API without a restart.
type Settings struct {
	GlobalThreshold       int           `json:"global_threshold"`
	GlobalWindow          time.Duration `json:"global_window"`
	GlobalBlockDuration   time.Duration `json:"global_block_duration"`
	PerHostThreshold      int           `json:"per_host_threshold"`
	PerHostWindow         time.Duration `json:"per_host_window"`
	PerHostBlockDur       time.Duration `json:"per_host_block_duration"`
	EnableAutoBlock       bool          `json:"enable_auto_block"`
	EnableGlobalAutoBlock bool          `json:"enable_global_auto_block"`
}

// APIError is the response envelope's error shape.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EventBatch is the wire payload an agent POSTs to the collector's ingest
// endpoint.
type EventBatch struct {
	HostID       string        `json:"host_id" validate:"required"`
	Hostname     string        `json:"hostname" validate:"required"`
	AgentVersion string        `json:"agent_version"`
	Events       []FailedLogin `json:"events" validate:"required,dive"`
}

// HourlyBucket is one hour's failed-login count in a 24-hour histogram.
type HourlyBucket struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// UsernameCount is one entry in a top-targeted-usernames ranking.
type UsernameCount struct {
	Username string `json:"username"`
	Count    int64  `json:"count"`
}

// SourceIPCount is one entry in a top-source-IPs ranking.
type SourceIPCount struct {
	SourceIP string `json:"source_ip"`
	Count    int64  `json:"count"`
}

// Statistics aggregates collector-wide failed-login activity.
type Statistics struct {
	TotalFailedAttempts int64           `json:"total_failed_attempts"`
	UniqueSourceIPs     int64           `json:"unique_source_ips"`
	ActiveBlockCount    int64           `json:"active_block_count"`
	Last24h             int64           `json:"last_24h"`
	LastHour            int64           `json:"last_hour"`
	TopUsernames        []UsernameCount `json:"top_usernames"`
	HourlyHistogram     []HourlyBucket  `json:"hourly_histogram"`
}

// HostBreakdown is one host's row in GlobalStatistics' per-host breakdown.
type HostBreakdown struct {
	HostID              string `json:"host_id"`
	Hostname            string `json:"hostname"`
	TotalFailedAttempts int64  `json:"total_failed_attempts"`
}

// GlobalStatistics extends Statistics with a per-host breakdown and host
// activity counts.
type GlobalStatistics struct {
	Statistics
	PerHost       []HostBreakdown `json:"per_host"`
	ActiveHosts   int             `json:"active_hosts"`
	InactiveHosts int             `json:"inactive_hosts"`
}

// HostAttackStats is one host's attack summary for GetHostAttacks.
type HostAttackStats struct {
	HostID              string          `json:"host_id"`
	TotalFailedAttempts int64           `json:"total_failed_attempts"`
	UniqueAttackers     int64           `json:"unique_attackers"`
	Last24h             int64           `json:"last_24h"`
	LastHour            int64           `json:"last_hour"`
	TopUsernames        []UsernameCount `json:"top_usernames"`
	TopSourceIPs        []SourceIPCount `json:"top_source_ips"`
}

// FeedEvent is a single frame sent to live feed subscribers over SSE.
type FeedEvent struct {
	Type      string      `json:"type"` // "failed_login", "block_created", "block_released"
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}
