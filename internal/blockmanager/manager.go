// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package blockmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// ErrNoActiveBlock is returned by Unblock when the IP has no active block.
var ErrNoActiveBlock = errors.New("blockmanager: no active block for ip")

// Store is the block-related persistence surface the manager needs.
type Store interface {
	CreateBlock(ctx context.Context, b models.Block) (models.Block, error)
	GetActiveGlobalBlock(ctx context.Context, sourceIP string) (models.Block, error)
	GetActivePerHostBlock(ctx context.Context, sourceIP, hostID string) (models.Block, error)
	ListActiveBlocks(ctx context.Context) ([]models.Block, error)
	ListActiveBlocksForIP(ctx context.Context, sourceIP string) ([]models.Block, error)
	ListExpiredActiveBlocks(ctx context.Context) ([]models.Block, error)
	ReleaseBlock(ctx context.Context, id int64) error
	IncrementBlockFailedCalls(ctx context.Context, id int64) error
	SetSuspiciousIPBlocked(ctx context.Context, sourceIP string, blocked bool) error
}

// Manager creates, releases, and reconciles IP blocks, applying them
// through a FirewallAdapter wrapped in a circuit breaker so a misbehaving
// adapter can't cascade into the rest of the collector.
type Manager struct {
	store   Store
	adapter FirewallAdapter
	breaker *gobreaker.CircuitBreaker[any]
	cfg     config.BlockConfig
	audit   *logging.SecurityLogger
}

// NewManager builds a Manager around store and adapter, using cfg for
// default block durations and circuit breaker tuning.
func NewManager(store Store, adapter FirewallAdapter, cfg config.BlockConfig) *Manager {
	const breakerName = "firewall_adapter"

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.CircuitOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitMaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &Manager{
		store:   store,
		adapter: adapter,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		cfg:     cfg,
		audit:   logging.NewSecurityLogger(),
	}
}

// HasActiveGlobalBlock satisfies detection.BlockCreator.
func (m *Manager) HasActiveGlobalBlock(ctx context.Context, sourceIP string) (bool, error) {
	_, err := m.store.GetActiveGlobalBlock(ctx, sourceIP)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasActivePerHostBlock satisfies detection.BlockCreator.
func (m *Manager) HasActivePerHostBlock(ctx context.Context, sourceIP, hostID string) (bool, error) {
	_, err := m.store.GetActivePerHostBlock(ctx, sourceIP, hostID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateGlobalBlock satisfies detection.BlockCreator, using the
// collector-wide global block duration.
func (m *Manager) CreateGlobalBlock(ctx context.Context, sourceIP, reason string) error {
	_, err := m.CreateBlock(ctx, sourceIP, models.BlockScopeGlobal, "", reason, m.cfg.GlobalBlockDuration)
	return err
}

// CreatePerHostBlock satisfies detection.BlockCreator, using the
// collector-wide per-host block duration.
func (m *Manager) CreatePerHostBlock(ctx context.Context, sourceIP, hostID, reason string) error {
	_, err := m.CreateBlock(ctx, sourceIP, models.BlockScopePerHost, hostID, reason, m.cfg.PerHostBlockDuration)
	return err
}

// CreateBlock inserts a Block row, flags the IP as blocked, and applies it
// through the firewall adapter. An adapter failure does not fail the
// call — the Block row stays active and the reconciler retries it.
func (m *Manager) CreateBlock(ctx context.Context, sourceIP string, scope models.BlockScope, hostID, reason string, duration time.Duration) (models.Block, error) {
	b, err := m.store.CreateBlock(ctx, models.Block{
		SourceIP:  sourceIP,
		Scope:     scope,
		HostID:    hostID,
		Reason:    reason,
		ExpiresAt: time.Now().Add(duration),
	})
	if err != nil {
		metrics.RecordBlockAction("create", string(scope), "error")
		return models.Block{}, fmt.Errorf("blockmanager: create block: %w", err)
	}

	if err := m.store.SetSuspiciousIPBlocked(ctx, sourceIP, true); err != nil {
		logging.Error().Err(err).Str("source_ip", sourceIP).Msg("failed to flag suspicious ip as blocked")
	}

	if err := m.applyWithBreaker(ctx, sourceIP, scope, hostID); err != nil {
		m.recordApplyFailure(ctx, b, err)
		metrics.RecordBlockAction("create", string(scope), "apply_failed")
		return b, nil
	}

	metrics.RecordBlockAction("create", string(scope), "ok")
	m.audit.LogBlockCreated(sourceIP, string(scope), reason)
	return b, nil
}

// Unblock releases every active block (both scopes) for sourceIP and
// removes it from the firewall. Returns ErrNoActiveBlock if none existed.
func (m *Manager) Unblock(ctx context.Context, sourceIP string) error {
	blocks, err := m.store.ListActiveBlocksForIP(ctx, sourceIP)
	if err != nil {
		return fmt.Errorf("blockmanager: list active blocks for %s: %w", sourceIP, err)
	}
	if len(blocks) == 0 {
		return ErrNoActiveBlock
	}

	for _, b := range blocks {
		if err := m.store.ReleaseBlock(ctx, b.ID); err != nil {
			logging.Error().Err(err).Int64("block_id", b.ID).Msg("failed to release block")
			continue
		}
		if err := m.removeWithBreaker(ctx, sourceIP, b.Scope, b.HostID); err != nil {
			logging.Error().Err(err).Str("source_ip", sourceIP).Msg("firewall adapter remove failed during unblock")
		}
	}

	if err := m.store.SetSuspiciousIPBlocked(ctx, sourceIP, false); err != nil {
		logging.Error().Err(err).Str("source_ip", sourceIP).Msg("failed to clear suspicious ip blocked flag")
	}

	for _, b := range blocks {
		m.audit.LogUnblock(sourceIP, string(b.Scope), "manual")
	}

	metrics.RecordBlockAction("unblock", "all", "ok")
	return nil
}

func (m *Manager) recordApplyFailure(ctx context.Context, b models.Block, err error) {
	if isPermanent(err) {
		logging.Error().Err(err).Str("source_ip", b.SourceIP).Msg("firewall adapter apply failed permanently, block left active for operator")
		return
	}
	if incErr := m.store.IncrementBlockFailedCalls(ctx, b.ID); incErr != nil {
		logging.Error().Err(incErr).Int64("block_id", b.ID).Msg("failed to record adapter failure count")
	}
	logging.Warn().Err(err).Str("source_ip", b.SourceIP).Msg("firewall adapter apply failed transiently, will retry on next reconcile")
}

func (m *Manager) applyWithBreaker(ctx context.Context, sourceIP string, scope models.BlockScope, hostID string) error {
	return m.callAdapter(ctx, "apply", func() error {
		return m.adapter.Apply(ctx, sourceIP, scope, hostID)
	})
}

func (m *Manager) removeWithBreaker(ctx context.Context, sourceIP string, scope models.BlockScope, hostID string) error {
	return m.callAdapter(ctx, "remove", func() error {
		return m.adapter.Remove(ctx, sourceIP, scope, hostID)
	})
}

func (m *Manager) callAdapter(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	_, err := m.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	metrics.RecordFirewallAdapterCall(operation, time.Since(start))

	result := "success"
	if err != nil {
		result = "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
	}
	metrics.CircuitBreakerRequests.WithLabelValues("firewall_adapter", result).Inc()
	return err
}
