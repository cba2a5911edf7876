// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package agent implements the Windows-host side of the pipeline: read
// failed-logon records from the security event log exactly once each,
// normalize and queue them, and ship them to the Collector. It is split
// into two independently supervised services (Capture and Drain) so a
// crash in the HTTP sender never stops event capture, and vice versa.
package agent

import (
	"context"
	"time"

	"github.com/loginwatch/sentinel/internal/agent/winlog"
	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/models"
)

// backscanBatchSize bounds a single ReadBackward/ReadForward call.
const backscanBatchSize = 200

// Agent holds the pipeline's shared state: the event source, the dedup
// set, and the outbound retry queue. Capture and Drain are the two
// suture services built from it; both close over the same Agent so they
// share queue and seen-set state without needing their own channel.
type Agent struct {
	cfg    config.AgentConfig
	source winlog.EventSource
	seen   *seenSet
	queue  *retryQueue
	sender *sender

	lastRecordID uint64
}

// New wires an Agent from configuration and an already-open event
// source. The event source's lifetime belongs to the caller; Agent
// never closes it.
func New(cfg config.AgentConfig, source winlog.EventSource) *Agent {
	return &Agent{
		cfg:    cfg,
		source: source,
		seen:   loadSeenSet(cfg.SeenFilePath),
		queue:  newRetryQueue(cfg.RetryMaxQueue),
		sender: newSender(cfg.CollectorURL, cfg.HostID, cfg.HostName, 30*time.Second, cfg.RetryBackoff),
	}
}

// Capture returns the suture service that runs the back-scan and live
// subscription stages of the pipeline.
func (a *Agent) Capture() *captureService {
	return &captureService{agent: a}
}

// Drain returns the suture service that periodically flushes the retry
// queue to the Collector.
func (a *Agent) Drain() *drainService {
	return &drainService{agent: a}
}

// captureService implements suture.Service for the read side of the
// pipeline: startup back-scan, then live subscription with a
// safety-net forward poll on every wake.
type captureService struct {
	agent *Agent
}

func (c *captureService) Serve(ctx context.Context) error {
	a := c.agent

	if err := a.backscan(ctx); err != nil {
		logging.Warn().Err(err).Msg("agent: back-scan ended early")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, err := a.source.Wait(ctx, a.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn().Err(err).Msg("agent: wait on event source failed, falling back to poll")
		}

		// Safety-net pull: runs every wake regardless of why we woke,
		// so a missed signal never costs more than one poll interval.
		if err := a.drainForward(ctx); err != nil {
			logging.Warn().Err(err).Msg("agent: forward read failed")
		}
	}
}

// backscan reads the security log backward from the newest record,
// stopping as soon as a whole batch is entirely already-seen.
func (a *Agent) backscan(ctx context.Context) error {
	var before uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := a.source.ReadBackward(ctx, before, backscanBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		allSeen := true
		oldest := before
		for _, raw := range batch {
			if raw.RecordID > a.lastRecordID {
				a.lastRecordID = raw.RecordID
			}
			if oldest == 0 || raw.RecordID < oldest {
				oldest = raw.RecordID
			}
			if a.admit(raw) {
				allSeen = false
			}
		}
		if err := a.seen.Persist(); err != nil {
			logging.Warn().Err(err).Msg("agent: persisting seen set")
		}

		if allSeen {
			return nil
		}
		before = oldest
	}
}

// drainForward reads every record newer than the last one processed,
// looping until a read returns empty.
func (a *Agent) drainForward(ctx context.Context) error {
	for {
		batch, err := a.source.ReadForward(ctx, a.lastRecordID, backscanBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for _, raw := range batch {
			if raw.RecordID > a.lastRecordID {
				a.lastRecordID = raw.RecordID
			}
			a.admit(raw)
		}
		if err := a.seen.Persist(); err != nil {
			logging.Warn().Err(err).Msg("agent: persisting seen set")
		}
	}
}

// admit parses, fingerprints, and (if new) queues one raw event.
// Returns true if the event was newly admitted (not a duplicate, not
// filtered, not malformed).
func (a *Agent) admit(raw winlog.RawEvent) bool {
	parsed, err := parseRawEvent(raw)
	if err != nil {
		logging.Warn().Err(err).Uint64("record_id", raw.RecordID).Msg("agent: dropping malformed event")
		return false
	}
	if parsed == nil {
		// Filtered as loopback/empty-source noise, not an error.
		return false
	}

	fp := parsed.fingerprintOf()
	if a.seen.Contains(fp) {
		return false
	}
	a.seen.Add(fp)

	ev := models.FailedLogin{
		HostID:          a.cfg.HostID,
		SourceIP:        parsed.ip,
		TargetUsername:  parsed.username,
		SourcePort:      parsed.port,
		EventTimestamp:  parsed.localTime,
		LogonType:       parsed.logonType,
		FailureReason:   parsed.status,
		WorkstationName: parsed.workstation,
		Fingerprint:     fp,
	}
	if evicted := a.queue.Push(ev); evicted {
		logging.Warn().Msg("agent: retry queue full, dropped oldest event")
	}
	return true
}
