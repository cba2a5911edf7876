// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package blockmanager

import (
	"context"
	"time"

	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// ExpiryReconciler periodically expires Block rows past expires_at and
// retries the firewall adapter for active blocks with a recorded transient
// apply failure (failed_calls > 0).
// It implements suture.Service so it runs supervised alongside the rest of
// the collector's core services.
type ExpiryReconciler struct {
	manager  *Manager
	interval time.Duration
}

// NewExpiryReconciler builds a reconciler that ticks at interval.
func NewExpiryReconciler(manager *Manager, interval time.Duration) *ExpiryReconciler {
	return &ExpiryReconciler{manager: manager, interval: interval}
}

// Serve runs the reconcile loop until ctx is canceled.
func (r *ExpiryReconciler) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", r.interval).Msg("block expiry reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("block expiry reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *ExpiryReconciler) tick(ctx context.Context) {
	r.expireDueBlocks(ctx)
	r.retryFailedApplies(ctx)
	r.reportActiveGauge(ctx)
}

func (r *ExpiryReconciler) expireDueBlocks(ctx context.Context) {
	expired, err := r.manager.store.ListExpiredActiveBlocks(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("reconciler: failed to list expired blocks")
		return
	}

	for _, b := range expired {
		if err := r.manager.store.ReleaseBlock(ctx, b.ID); err != nil {
			logging.Error().Err(err).Int64("block_id", b.ID).Msg("reconciler: failed to release expired block")
			continue
		}
		if err := r.manager.removeWithBreaker(ctx, b.SourceIP, b.Scope, b.HostID); err != nil {
			logging.Error().Err(err).Str("source_ip", b.SourceIP).Msg("reconciler: adapter remove failed for expired block")
		}
		if err := r.manager.store.SetSuspiciousIPBlocked(ctx, b.SourceIP, false); err != nil {
			logging.Error().Err(err).Str("source_ip", b.SourceIP).Msg("reconciler: failed to clear blocked flag")
		}
		metrics.RecordBlockAction("expire", string(b.Scope), "ok")
		r.manager.audit.LogUnblock(b.SourceIP, string(b.Scope), "expired")
	}
}

// retryFailedApplies re-applies every active block with failed_calls > 0 —
// the transient-failure retry path from the firewall adapter contract. A
// successful reapply does not reset failed_calls, so such a block is
// reapplied on every tick for as long as it stays active. A per-host block is skipped (without touching its
// failed_calls count) when a global block already covers the same source
// IP: the global rule already blocks it at the firewall, so reapplying the
// narrower per-host rule would be redundant.
func (r *ExpiryReconciler) retryFailedApplies(ctx context.Context) {
	active, err := r.manager.store.ListActiveBlocks(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("reconciler: failed to list active blocks")
		return
	}

	for _, b := range active {
		if b.FailedCalls == 0 {
			continue
		}

		if b.Scope == models.BlockScopePerHost {
			hasGlobal, err := r.manager.HasActiveGlobalBlock(ctx, b.SourceIP)
			if err != nil {
				logging.Error().Err(err).Str("source_ip", b.SourceIP).Msg("reconciler: failed to check active global block")
			} else if hasGlobal {
				logging.Info().Str("source_ip", b.SourceIP).Int64("block_id", b.ID).
					Msg("reconciler: skipping per-host reapply, already covered by an active global block")
				continue
			}
		}

		if err := r.manager.applyWithBreaker(ctx, b.SourceIP, b.Scope, b.HostID); err != nil {
			r.manager.recordApplyFailure(ctx, b, err)
			continue
		}
		logging.Info().Str("source_ip", b.SourceIP).Int64("block_id", b.ID).Msg("reconciler: retried block apply succeeded")
	}
}

func (r *ExpiryReconciler) reportActiveGauge(ctx context.Context) {
	active, err := r.manager.store.ListActiveBlocks(ctx)
	if err != nil {
		return
	}
	counts := map[string]int{}
	for _, b := range active {
		counts[string(b.Scope)]++
	}
	metrics.BlocksActive.WithLabelValues("global").Set(float64(counts["global"]))
	metrics.BlocksActive.WithLabelValues("per_host").Set(float64(counts["per_host"]))
}
