// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package detection evaluates rolling-window brute-force thresholds
// against admitted failed-login events and decides whether to create an
// IP block.
//
// Two rules run on every admitted event: a global rule (count of rows for
// source_ip across all hosts within GlobalWindow) and a per-host rule
// (count of rows for source_ip on one host_id within its effective
// window). Per-host thresholds can be overridden per host; an unset
// override falls back to the collector-wide default.
//
// Both rules read counts from raw FailedLogin rows, never from
// SuspiciousIP's lifetime counter — that counter never resets and would
// let an IP idle for months re-trigger detection on a single new attempt.
//
// If the global rule fires, the per-host rule is skipped for that event:
// a global block already covers every host the IP might target. If a
// global block is already active when the per-host rule fires, no new
// per-host block is created either.
//
//	engine := detection.NewEngine(db, blockManager, cfg.Detection)
//	if err := engine.Evaluate(ctx, event); err != nil {
//		logging.Error().Err(err).Msg("detection evaluation failed")
//	}
package detection
