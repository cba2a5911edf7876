// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package ingestion is the collector's entry point for agent-submitted
// event batches. Service persists events idempotently, runs each newly
// accepted one through detection synchronously in the request-handling
// flow, then republishes it onto an in-process bus (Bus) for Dispatcher
// to broadcast to the live feed — the only part of this path that stays
// fire-and-forget.
//
//	bus := ingestion.NewBus()
//	svc := ingestion.NewService(db, bus, detectionEngine)
//	dispatcher := ingestion.NewDispatcher(bus, feedHub)
//	supervisorTree.AddCoreService(dispatcher)
//	...
//	accepted, err := svc.IngestBatch(ctx, batch)
package ingestion
