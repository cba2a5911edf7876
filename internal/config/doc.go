// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

/*
Package config loads CollectorConfig and AgentConfig through a layered
koanf pipeline: struct defaults, then an optional YAML file, then
environment variables, each layer overriding the last.

# File location

The file path comes from SENTINEL_CONFIG_PATH if set, otherwise the first
existing path in DefaultConfigPaths. A missing file is not an error —
defaults (optionally overridden by env) are used instead.

# Environment variables

Env vars are prefixed SENTINEL_ and use a double underscore to step into
nested fields:

	SENTINEL_SERVER__LISTEN_ADDR=:9000
	SENTINEL_DATABASE__MAX_OPEN_CONNS=8
	SENTINEL_DETECTION__GLOBAL_THRESHOLD=100

# Usage

	cfg, err := config.LoadCollectorConfig()
	if err != nil {
	    log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
	    log.Fatal(err)
	}
*/
package config
