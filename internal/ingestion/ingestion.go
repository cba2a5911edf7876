// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package ingestion accepts batches of failed-login events from agents,
// persists them idempotently, runs each newly accepted event through
// detection synchronously within the request, and republishes it onto an
// in-process bus for the live feed to consume.
package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/loginwatch/sentinel/internal/database"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// TopicEventsAccepted is the bus topic a newly accepted FailedLogin is
// published to after detection has already run. The live feed's Dispatcher
// subscribes to it for fire-and-forget broadcast to connected clients.
const TopicEventsAccepted = "events.accepted"

// Store is the persistence surface ingestion needs from the collector's
// database layer.
type Store interface {
	// IngestEvent persists e, refreshes its source IP's suspicious-ip
	// cache, and touches the reporting host, all as one transaction.
	// Returns database.ErrDuplicateEvent if e's natural key already
	// exists — the host is still touched and the transaction commits.
	IngestEvent(ctx context.Context, e models.FailedLogin, hostname, agentVersion string) error
	UpsertHost(ctx context.Context, hostID, hostname, agentVersion string) error
	RegisterHost(ctx context.Context, hostID, hostname, hostIP, collectionMethod string) error
}

// Evaluator is the detection engine's surface ingestion needs to run a
// newly committed event through the brute-force rules. Evaluate is called
// synchronously, in the request-handling flow, right after the event's own
// transaction commits.
type Evaluator interface {
	Evaluate(ctx context.Context, ev models.FailedLogin) error
}

// Service implements the collector's event ingestion path: IngestBatch for
// agent uploads, RegisterHost for explicit enrollment.
type Service struct {
	store     Store
	publisher message.Publisher
	evaluator Evaluator
	audit     *logging.SecurityLogger
}

// NewService builds a Service. publisher is typically backed by
// watermill's in-process gochannel pub/sub — see NewBus — and carries only
// the live-feed fan-out; evaluator runs synchronously in IngestBatch.
func NewService(store Store, publisher message.Publisher, evaluator Evaluator) *Service {
	return &Service{store: store, publisher: publisher, evaluator: evaluator, audit: logging.NewSecurityLogger()}
}

// IngestBatch persists every event in batch, touches the reporting host's
// last-seen timestamp, runs each newly accepted event through detection
// synchronously, and republishes it for the live feed. A duplicate event
// (same natural key as one already stored) is counted as accepted without
// being re-evaluated or re-published — the batch itself never fails for a
// duplicate, only for a store error unrelated to deduplication.
func (s *Service) IngestBatch(ctx context.Context, batch models.EventBatch) (accepted int, err error) {
	if err := s.store.UpsertHost(ctx, batch.HostID, batch.Hostname, batch.AgentVersion); err != nil {
		return 0, fmt.Errorf("ingestion: upsert host: %w", err)
	}

	for _, ev := range batch.Events {
		if ev.HostID == "" {
			ev.HostID = batch.HostID
		}

		ingestErr := s.store.IngestEvent(ctx, ev, batch.Hostname, batch.AgentVersion)
		switch {
		case errors.Is(ingestErr, database.ErrDuplicateEvent):
			metrics.RecordIngestEvent(batch.HostID, "duplicate")
			accepted++
			continue
		case ingestErr != nil:
			metrics.RecordIngestEvent(batch.HostID, "error")
			logging.Error().Err(ingestErr).Str("host_id", batch.HostID).Str("source_ip", ev.SourceIP).
				Msg("failed to ingest failed login event")
			continue
		}

		metrics.RecordIngestEvent(batch.HostID, "inserted")
		accepted++
		s.audit.LogFailedLogin(ev.SourceIP, ev.TargetUsername, ev.HostID)

		if err := s.evaluator.Evaluate(ctx, ev); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("source_ip", ev.SourceIP).Msg("detection evaluation failed")
		}

		s.publish(ctx, ev)
	}

	result := "accepted"
	if accepted < len(batch.Events) {
		result = "partial"
	}
	metrics.RecordIngestBatch(batch.HostID, result, len(batch.Events))

	return accepted, nil
}

// RegisterHost explicitly enrolls a host ahead of its first event batch,
// recording its network identity and collection method.
func (s *Service) RegisterHost(ctx context.Context, hostID, hostname, hostIP, collectionMethod string) error {
	if err := s.store.RegisterHost(ctx, hostID, hostname, hostIP, collectionMethod); err != nil {
		return fmt.Errorf("ingestion: register host: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, ev models.FailedLogin) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal event for bus publish")
		return
	}

	msg := message.NewMessage(fmt.Sprintf("%s-%d-%d", ev.HostID, ev.EventTimestamp.UnixNano(), ev.SourcePort), payload)
	msg.SetContext(ctx)

	if err := s.publisher.Publish(TopicEventsAccepted, msg); err != nil {
		logging.Error().Err(err).Msg("failed to publish accepted event")
	}
}
