// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package feed fans out live FailedLogin/Block events to connected
// Server-Sent Events subscribers.
//
// Hub runs as a supervised suture.Service. HTTP handlers call Subscribe to
// register, range over Subscriber.Events(), and call Unsubscribe when the
// client disconnects or the request context is canceled. Broadcasts are
// delivered in deterministic subscriber-ID order; a subscriber whose
// channel is full is dropped and its channel closed rather than blocking
// the rest of the fan-out — a slow browser tab never stalls the feed for
// everyone else.
//
//	hub := feed.NewHub(cfg.Feed)
//	supervisorTree.AddCoreService(hub)
//	...
//	sub := hub.Subscribe()
//	defer hub.Unsubscribe(sub)
//	for event := range sub.Events() {
//		feed.WriteSSE(w, flusher, event)
//	}
package feed
