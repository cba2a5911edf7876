// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package blockmanager

import (
	"context"

	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/models"
)

// FirewallAdapter applies and removes IP blocks against whatever actually
// enforces them (host firewall, upstream router, cloud security group).
// Both operations must be idempotent: applying an already-applied block or
// removing an already-removed one is not an error.
type FirewallAdapter interface {
	Apply(ctx context.Context, sourceIP string, scope models.BlockScope, hostID string) error
	Remove(ctx context.Context, sourceIP string, scope models.BlockScope, hostID string) error
}

// AdapterError distinguishes a transient failure (the reconciler will
// retry on its next pass) from a permanent one (the Block row is left
// active and logged for operator intervention — see Permanent()).
type AdapterError interface {
	error
	Permanent() bool
}

type adapterError struct {
	err       error
	permanent bool
}

func (e *adapterError) Error() string  { return e.err.Error() }
func (e *adapterError) Unwrap() error  { return e.err }
func (e *adapterError) Permanent() bool { return e.permanent }

// NewTransientError wraps err as a retryable adapter failure.
func NewTransientError(err error) AdapterError { return &adapterError{err: err} }

// NewPermanentError wraps err as a non-retryable adapter failure.
func NewPermanentError(err error) AdapterError { return &adapterError{err: err, permanent: true} }

// isPermanent reports whether err should leave the Block row active
// without further reconciler retries, per the AdapterError contract.
func isPermanent(err error) bool {
	var ae AdapterError
	if e, ok := err.(AdapterError); ok {
		ae = e
		return ae.Permanent()
	}
	return false
}

// NoopAdapter logs what it would do without touching any real firewall.
// It's the default for environments without a configured adapter — useful
// for demos and for exercising the rest of the pipeline in isolation.
type NoopAdapter struct{}

func (NoopAdapter) Apply(ctx context.Context, sourceIP string, scope models.BlockScope, hostID string) error {
	logging.Info().Str("source_ip", sourceIP).Str("scope", string(scope)).Str("host_id", hostID).Msg("noop firewall adapter: would apply block")
	return nil
}

func (NoopAdapter) Remove(ctx context.Context, sourceIP string, scope models.BlockScope, hostID string) error {
	logging.Info().Str("source_ip", sourceIP).Str("scope", string(scope)).Str("host_id", hostID).Msg("noop firewall adapter: would remove block")
	return nil
}
