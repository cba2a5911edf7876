// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package logging provides the zerolog-based global logger shared by the
// agent and collector binaries.
//
// # Quick start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("host_id", hostID).Msg("agent starting")
//	logging.Error().Err(err).Msg("ingest failed")
//
// Init is normally called once, early in main(), with values sourced from
// internal/config's LoggingConfig (itself populated from SENTINEL_LOGGING__*
// env vars or the config file — see internal/config's doc comment). Calling
// Init again reconfigures the global logger; this is mainly useful in tests.
//
// # Terminators
//
// Always close a log chain with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // correct
//	logging.Info().Str("key", "value")                 // wrong — never emitted
//
// # Context propagation
//
// logging.Ctx(ctx) recovers a per-request logger carrying a correlation ID
// set by internal/middleware's request-ID middleware.
//
// # slog adapter
//
// NewSlogLogger adapts the global zerolog logger to *slog.Logger for
// libraries that require one — internal/supervisor's suture tree is the
// only consumer today.
//
// # Audit logging
//
// security.go's SecurityLogger is a separate, narrower logger for
// failed-login and block-lifecycle audit events; it sanitizes account
// names before they reach a sink. See internal/ingestion and
// internal/blockmanager for its call sites.
package logging
