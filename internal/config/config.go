// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package config

import "time"

// CollectorConfig is the full configuration for the collector binary.
type CollectorConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Detection DetectionConfig `koanf:"detection"`
	Block    BlockConfig    `koanf:"block"`
	Feed     FeedConfig     `koanf:"feed"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// AgentConfig is the full configuration for the agent binary. HostID,
// CollectorURL, PollInterval, and EventID are the contractual keys; the
// rest are ambient tuning knobs the contract's "unknown keys ignored"
// clause leaves room for.
type AgentConfig struct {
	HostID         string        `koanf:"host_id"`
	HostName       string        `koanf:"host_name"`
	CollectorURL   string        `koanf:"collector_url"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	EventID        int           `koanf:"event_id"`
	BatchInterval  time.Duration `koanf:"batch_interval"`
	BatchMaxSize   int           `koanf:"batch_max_size"`
	BackscanWindow time.Duration `koanf:"backscan_window"`
	SeenFilePath   string        `koanf:"seen_file_path"`
	RetryMaxQueue  int           `koanf:"retry_max_queue"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	Logging        LoggingConfig `koanf:"logging"`
}

// ServerConfig controls the collector's HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `koanf:"listen_addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitRPS    int           `koanf:"rate_limit_rps"`
}

// DatabaseConfig controls the DuckDB-backed store.
type DatabaseConfig struct {
	Path            string        `koanf:"path"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// DetectionConfig holds the default, collector-wide detection thresholds.
// Per-host overrides live in the database (models.PerHostPolicy), not here.
type DetectionConfig struct {
	GlobalThreshold  int           `koanf:"global_threshold"`
	GlobalWindow     time.Duration `koanf:"global_window"`
	PerHostThreshold int           `koanf:"per_host_threshold"`
	PerHostWindow    time.Duration `koanf:"per_host_window"`
	// EnableAutoBlock is the per-host auto-block master switch's startup
	// default; GetEnableAutoBlock's Settings override takes precedence once
	// set.
	EnableAutoBlock bool `koanf:"enable_auto_block"`
	// EnableGlobalAutoBlock is the global-scope auto-block master switch's
	// startup default, independent of EnableAutoBlock.
	EnableGlobalAutoBlock bool `koanf:"enable_global_auto_block"`
}

// BlockConfig controls block duration defaults and the firewall adapter's
// circuit breaker.
type BlockConfig struct {
	GlobalBlockDuration  time.Duration `koanf:"global_block_duration"`
	PerHostBlockDuration time.Duration `koanf:"per_host_block_duration"`
	ReconcileInterval    time.Duration `koanf:"reconcile_interval"`
	CircuitMaxFailures   int           `koanf:"circuit_max_failures"`
	CircuitOpenTimeout   time.Duration `koanf:"circuit_open_timeout"`
}

// FeedConfig controls the live SSE feed.
type FeedConfig struct {
	SubscriberBufferSize int           `koanf:"subscriber_buffer_size"`
	KeepAliveInterval    time.Duration `koanf:"keepalive_interval"`
}

// LoggingConfig mirrors internal/logging.Config, duplicated here so koanf
// can populate it without an import cycle.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// DefaultCollectorConfig returns production-ready defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Server: ServerConfig{
			ListenAddr:      ":3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitRPS:    50,
		},
		Database: DatabaseConfig{
			Path:            "sentinel.duckdb",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Detection: DetectionConfig{
			GlobalThreshold:       50,
			GlobalWindow:          5 * time.Minute,
			PerHostThreshold:      10,
			PerHostWindow:         5 * time.Minute,
			EnableAutoBlock:       true,
			EnableGlobalAutoBlock: true,
		},
		Block: BlockConfig{
			GlobalBlockDuration:  24 * time.Hour,
			PerHostBlockDuration: time.Hour,
			ReconcileInterval:    30 * time.Second,
			CircuitMaxFailures:   5,
			CircuitOpenTimeout:   30 * time.Second,
		},
		Feed: FeedConfig{
			SubscriberBufferSize: 32,
			KeepAliveInterval:    15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Caller:    false,
			Timestamp: true,
		},
	}
}

// DefaultAgentConfig returns production-ready defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		CollectorURL:   "http://localhost:3000",
		PollInterval:   10 * time.Second,
		EventID:        4625,
		BatchInterval:  10 * time.Second,
		BatchMaxSize:   200,
		BackscanWindow: 15 * time.Minute,
		SeenFilePath:   "",
		RetryMaxQueue:  5000,
		RetryBackoff:   5 * time.Second,
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Caller:    false,
			Timestamp: true,
		},
	}
}
