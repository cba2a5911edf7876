// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable holding an explicit
// config file path, checked before DefaultConfigPaths.
const ConfigPathEnvVar = "SENTINEL_CONFIG_PATH"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"./sentinel.yaml",
	"/etc/sentinel/sentinel.yaml",
}

const envPrefix = "SENTINEL_"

// envTransformFunc maps SENTINEL_FOO_BAR env vars onto the foo.bar koanf
// path. Double underscores step into nested structs:
// SENTINEL_DATABASE__MAX_OPEN_CONNS -> database.max_open_conns
func envTransformFunc(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "__", ".")
	return s
}

// LoadCollectorConfig loads CollectorConfig from defaults, then an optional
// YAML file, then environment variables, in that order of precedence.
func LoadCollectorConfig() (CollectorConfig, error) {
	k := koanf.New(".")
	defaults := DefaultCollectorConfig()

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return CollectorConfig{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return CollectorConfig{}, fmt.Errorf("config: loading file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return CollectorConfig{}, fmt.Errorf("config: loading env: %w", err)
	}

	var cfg CollectorConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return CollectorConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	return cfg, nil
}

// LoadAgentConfig loads AgentConfig the same way LoadCollectorConfig does.
func LoadAgentConfig() (AgentConfig, error) {
	k := koanf.New(".")
	defaults := DefaultAgentConfig()

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return AgentConfig{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return AgentConfig{}, fmt.Errorf("config: loading file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return AgentConfig{}, fmt.Errorf("config: loading env: %w", err)
	}

	var cfg AgentConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.HostID == "" || cfg.HostName == "" {
		hostname, err := os.Hostname()
		if err == nil {
			if cfg.HostID == "" {
				cfg.HostID = hostname
			}
			if cfg.HostName == "" {
				cfg.HostName = hostname
			}
		}
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, checked in
// order: ConfigPathEnvVar, then DefaultConfigPaths. Returns "" if none exist.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
