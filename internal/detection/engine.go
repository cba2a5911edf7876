// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package detection

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// CountStore is the windowed-count query surface the engine needs from the
// collector's persistent store. Counts always come from raw FailedLogin
// rows — never a lifetime cache — per the engine's threshold contract.
type CountStore interface {
	CountFailedLoginsInWindow(ctx context.Context, sourceIP string, window time.Duration) (int64, error)
	CountFailedLoginsForHostInWindow(ctx context.Context, sourceIP, hostID string, window time.Duration) (int64, error)
	GetPerHostPolicy(ctx context.Context, hostID string) (models.PerHostPolicy, error)
	// GetEnableAutoBlock and GetEnableGlobalAutoBlock return the two
	// independent auto-block master switches, falling back to def when an
	// operator has never overridden the collector's static default.
	GetEnableAutoBlock(ctx context.Context, def bool) (bool, error)
	GetEnableGlobalAutoBlock(ctx context.Context, def bool) (bool, error)
}

// BlockCreator is the block manager's surface the engine needs to enqueue
// blocks and check for existing ones, without importing blockmanager
// directly (blockmanager depends on the database layer the same way the
// engine does — neither package needs to know about the other's internals).
type BlockCreator interface {
	HasActiveGlobalBlock(ctx context.Context, sourceIP string) (bool, error)
	HasActivePerHostBlock(ctx context.Context, sourceIP, hostID string) (bool, error)
	CreateGlobalBlock(ctx context.Context, sourceIP, reason string) error
	CreatePerHostBlock(ctx context.Context, sourceIP, hostID, reason string) error
}

const (
	ruleGlobal  = "global"
	rulePerHost = "per_host"
)

// Engine evaluates rolling-window thresholds against admitted FailedLogin
// events and decides block actions.
type Engine struct {
	store   CountStore
	blocker BlockCreator
	cfg     config.DetectionConfig
}

// NewEngine builds an Engine against store and blocker, using cfg for the
// collector-wide default thresholds. Per-host overrides are read from store
// at evaluation time.
func NewEngine(store CountStore, blocker BlockCreator, cfg config.DetectionConfig) *Engine {
	return &Engine{store: store, blocker: blocker, cfg: cfg}
}

// Evaluate runs both the global and per-host rules against ev. It is called
// once per admitted FailedLogin, after ingestion has already persisted the
// event — the counts it reads include ev itself.
func (e *Engine) Evaluate(ctx context.Context, ev models.FailedLogin) error {
	triggeredGlobal, err := e.evaluateGlobal(ctx, ev)
	if err != nil {
		return err
	}

	// If the global rule fired this round, the per-host rule is skipped
	// entirely: a global block already covers every host.
	if triggeredGlobal {
		return nil
	}

	return e.evaluatePerHost(ctx, ev)
}

func (e *Engine) evaluateGlobal(ctx context.Context, ev models.FailedLogin) (bool, error) {
	start := time.Now()

	count, err := e.store.CountFailedLoginsInWindow(ctx, ev.SourceIP, e.cfg.GlobalWindow)
	if err != nil {
		metrics.RecordDetectionEvaluation(ruleGlobal, time.Since(start), false)
		return false, err
	}

	globalAutoBlock, err := e.store.GetEnableGlobalAutoBlock(ctx, e.cfg.EnableGlobalAutoBlock)
	if err != nil {
		metrics.RecordDetectionEvaluation(ruleGlobal, time.Since(start), false)
		return false, err
	}

	triggered := globalAutoBlock && count >= int64(e.cfg.GlobalThreshold)
	metrics.RecordDetectionEvaluation(ruleGlobal, time.Since(start), triggered)
	if !triggered {
		return false, nil
	}

	already, err := e.blocker.HasActiveGlobalBlock(ctx, ev.SourceIP)
	if err != nil {
		return true, err
	}
	if already {
		// Already covered; skip per-host evaluation below but don't
		// re-create the block.
		return true, nil
	}

	reason := "global threshold exceeded"
	if err := e.blocker.CreateGlobalBlock(ctx, ev.SourceIP, reason); err != nil {
		logging.Error().Err(err).Str("source_ip", ev.SourceIP).Msg("failed to create global block")
		return true, err
	}
	logging.Warn().Str("source_ip", ev.SourceIP).Int64("count", count).Msg("global threshold exceeded, block created")
	return true, nil
}

func (e *Engine) evaluatePerHost(ctx context.Context, ev models.FailedLogin) error {
	start := time.Now()

	policy, err := e.effectivePolicy(ctx, ev.HostID)
	if err != nil {
		return err
	}
	if !policy.DetectionActive {
		metrics.RecordDetectionEvaluation(rulePerHost, time.Since(start), false)
		return nil
	}

	count, err := e.store.CountFailedLoginsForHostInWindow(ctx, ev.SourceIP, ev.HostID, policy.Window)
	if err != nil {
		metrics.RecordDetectionEvaluation(rulePerHost, time.Since(start), false)
		return err
	}

	triggered := count >= int64(policy.Threshold)
	metrics.RecordDetectionEvaluation(rulePerHost, time.Since(start), triggered)
	if !triggered {
		return nil
	}

	// A global block created from a different event already covers this
	// host; don't create a redundant per-host block.
	globalActive, err := e.blocker.HasActiveGlobalBlock(ctx, ev.SourceIP)
	if err != nil {
		return err
	}
	if globalActive {
		return nil
	}

	already, err := e.blocker.HasActivePerHostBlock(ctx, ev.SourceIP, ev.HostID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	reason := "per-host threshold exceeded"
	if err := e.blocker.CreatePerHostBlock(ctx, ev.SourceIP, ev.HostID, reason); err != nil {
		logging.Error().Err(err).Str("source_ip", ev.SourceIP).Str("host_id", ev.HostID).Msg("failed to create per-host block")
		return err
	}
	logging.Warn().Str("source_ip", ev.SourceIP).Str("host_id", ev.HostID).Int64("count", count).Msg("per-host threshold exceeded, block created")
	return nil
}

// effectivePolicy loads hostID's PerHostPolicy override, falling back to the
// collector-wide defaults (with detection active) if none is set.
func (e *Engine) effectivePolicy(ctx context.Context, hostID string) (models.PerHostPolicy, error) {
	p, err := e.store.GetPerHostPolicy(ctx, hostID)
	if errors.Is(err, sql.ErrNoRows) {
		autoBlock, err := e.store.GetEnableAutoBlock(ctx, e.cfg.EnableAutoBlock)
		if err != nil {
			return models.PerHostPolicy{}, err
		}
		return models.PerHostPolicy{
			HostID:          hostID,
			Threshold:       e.cfg.PerHostThreshold,
			Window:          e.cfg.PerHostWindow,
			DetectionActive: autoBlock,
		}, nil
	}
	if err != nil {
		return models.PerHostPolicy{}, err
	}
	return p, nil
}
