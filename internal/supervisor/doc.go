// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

/*
Package supervisor provides process supervision using suture v4.

It implements a two-layer supervisor tree that manages the lifecycle of all
long-running services in the agent and collector binaries, with Erlang/OTP-style
supervision: automatic restart, failure isolation, and graceful shutdown.

# Overview

	RootSupervisor ("sentinel-collector" / "sentinel-agent")
	├── core   — domain pipeline services
	└── api    — anything listening on a socket

For the collector, core holds the feed hub, the block expiry reconciler,
and the ingestion dispatcher; api holds the HTTP server. For the agent, core holds the watch/send
pipeline; the api layer is unused.

# Usage

	logger := slog.Default()
	tree, err := supervisor.NewSupervisorTree("sentinel-collector", logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}

	tree.AddCoreService(reconciler)
	tree.AddAPIService(httpServer)

	if err := tree.Serve(ctx); err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Failure handling

Each service failure increments a per-supervisor counter that decays
exponentially over FailureDecay seconds. Once the counter exceeds
FailureThreshold, restarts are delayed by FailureBackoff.

# Service interface

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning nil stops the service for good; returning an error triggers a
restart; a canceled context means shut down promptly.

# Debugging shutdown issues

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service didn't stop: %v", svc)
	}
*/
package supervisor
