// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"context"
	"time"

	"github.com/loginwatch/sentinel/internal/logging"
)

// shutdownFlushTimeout bounds the final best-effort drain attempt made
// when Serve's context is canceled; it must not block process exit.
const shutdownFlushTimeout = 5 * time.Second

// drainService implements suture.Service for the send side of the
// pipeline: on each tick, snapshot the retry queue and attempt to ship
// it. A failed send leaves the queue intact for the next tick.
type drainService struct {
	agent *Agent
}

func (d *drainService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(d.agent.cfg.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.flushOnShutdown()
			return ctx.Err()
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

// flushOnShutdown makes one best-effort attempt to ship whatever is left
// in the retry queue. ctx is already canceled by the time Serve sees
// ctx.Done(), so this uses its own short-lived context instead.
func (d *drainService) flushOnShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	d.drainOnce(ctx)
}

func (d *drainService) drainOnce(ctx context.Context) {
	a := d.agent
	batch := a.queue.Snapshot()
	if len(batch) == 0 {
		return
	}
	// BatchMaxSize caps a single HTTP request's size; any remainder
	// stays queued for the next tick rather than growing one request
	// without bound.
	if a.cfg.BatchMaxSize > 0 && len(batch) > a.cfg.BatchMaxSize {
		batch = batch[:a.cfg.BatchMaxSize]
	}

	if err := a.sender.Send(ctx, batch); err != nil {
		logging.Warn().Err(err).Int("queued", len(batch)).Msg("agent: send failed, retaining queue")
		return
	}

	a.queue.Clear(len(batch))
	logging.Info().Int("sent", len(batch)).Msg("agent: batch delivered")
}
