// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package main is the entry point for the agent binary: it watches the
// local Windows security event log for failed logons and ships them to
// a collector.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loginwatch/sentinel/internal/agent"
	"github.com/loginwatch/sentinel/internal/agent/winlog"
	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/supervisor"
)

func main() {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load agent configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid agent configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("host_id", cfg.HostID).Str("collector_url", cfg.CollectorURL).Msg("starting sentinel agent")

	source, err := winlog.Open(cfg.EventID)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open event source")
	}
	defer func() {
		if err := source.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing event source")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree("sentinel-agent", slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	a := agent.New(cfg, source)
	// Capture and Drain run as independent core services: a crash in
	// the HTTP sender must never stop event capture, and vice versa.
	tree.AddCoreService(a.Capture())
	tree.AddCoreService(a.Drain())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := tree.ServeBackground(ctx)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("supervisor tree stopped with error")
		}
		return
	}

	<-errCh
	logging.Info().Msg("sentinel agent stopped")
}
