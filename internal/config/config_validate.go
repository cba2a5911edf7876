// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package config

import "fmt"

// Validate checks invariants DefaultCollectorConfig can't enforce by
// itself, such as thresholds overridden to zero by a bad env var.
func (c CollectorConfig) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path must not be empty")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be at least 1")
	}
	if c.Detection.GlobalThreshold < 1 {
		return fmt.Errorf("config: detection.global_threshold must be at least 1")
	}
	if c.Detection.GlobalWindow <= 0 {
		return fmt.Errorf("config: detection.global_window must be positive")
	}
	if c.Detection.PerHostThreshold < 1 {
		return fmt.Errorf("config: detection.per_host_threshold must be at least 1")
	}
	if c.Detection.PerHostWindow <= 0 {
		return fmt.Errorf("config: detection.per_host_window must be positive")
	}
	if c.Block.ReconcileInterval <= 0 {
		return fmt.Errorf("config: block.reconcile_interval must be positive")
	}
	return nil
}

// Validate checks AgentConfig invariants.
func (c AgentConfig) Validate() error {
	if c.HostID == "" {
		return fmt.Errorf("config: host_id must not be empty")
	}
	if c.CollectorURL == "" {
		return fmt.Errorf("config: collector_url must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("config: batch_interval must be positive")
	}
	if c.BatchMaxSize < 1 {
		return fmt.Errorf("config: batch_max_size must be at least 1")
	}
	if c.RetryMaxQueue < 1 {
		return fmt.Errorf("config: retry_max_queue must be at least 1")
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("config: retry_backoff must be positive")
	}
	return nil
}
