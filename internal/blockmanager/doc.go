// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package blockmanager creates, releases, and reconciles IP blocks against
// a pluggable FirewallAdapter.
//
// CreateBlock inserts the Block row and flags the SuspiciousIP as blocked
// before calling the adapter; an adapter failure never fails the call —
// the row stays active and ExpiryReconciler retries it on its next pass.
// A failure is either transient (retried) or permanent (logged at ERROR
// and left for an operator), distinguished by the AdapterError.Permanent
// method.
//
// Every adapter call goes through a sony/gobreaker circuit breaker keyed
// on consecutive failures: once the adapter is clearly unreachable, the
// breaker opens and short-circuits further calls for CircuitOpenTimeout,
// instead of letting every block action block on a dead adapter.
//
// ExpiryReconciler is a suture.Service: it runs on its own tick, expiring
// blocks past their expires_at and retrying active blocks with a recorded
// transient apply failure. A successful retry does not reset the failure
// count, so such a block is reapplied on each tick until it is released
// or expires.
package blockmanager
