// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package main is the entry point for the collector binary: it persists
// failed-login events shipped by agents, runs brute-force detection, and
// serves the query/command API and live feed described in the project's
// external interface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loginwatch/sentinel/internal/api"
	"github.com/loginwatch/sentinel/internal/blockmanager"
	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/database"
	"github.com/loginwatch/sentinel/internal/detection"
	"github.com/loginwatch/sentinel/internal/feed"
	"github.com/loginwatch/sentinel/internal/ingestion"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/supervisor"
)

func main() {
	cfg, err := config.LoadCollectorConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load collector configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid collector configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("starting sentinel collector")

	db, err := database.Open(context.Background(), cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("database opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree("sentinel-collector", slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	feedHub := feed.NewHub(cfg.Feed)
	tree.AddCoreService(feedHub)

	manager := blockmanager.NewManager(db, blockmanager.NoopAdapter{}, cfg.Block)
	reconciler := blockmanager.NewExpiryReconciler(manager, cfg.Block.ReconcileInterval)
	tree.AddCoreService(reconciler)

	engine := detection.NewEngine(db, manager, cfg.Detection)

	bus := ingestion.NewBus()
	dispatcher := ingestion.NewDispatcher(bus, feedHub)
	tree.AddCoreService(dispatcher)

	ingestSvc := ingestion.NewService(db, bus, engine)

	handler := api.NewHandler(db, manager, ingestSvc, feedHub)
	router := api.NewRouter(handler, cfg.Server)
	server := api.NewServer(router, cfg.Server)
	tree.AddAPIService(server)

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
	logging.Info().Msg("sentinel collector stopped")
}
