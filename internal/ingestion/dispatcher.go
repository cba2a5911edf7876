// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package ingestion

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/loginwatch/sentinel/internal/feed"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/models"
)

// FeedPublisher is the live feed's surface the dispatcher needs to
// broadcast a newly accepted event to connected subscribers.
type FeedPublisher interface {
	Publish(event models.FeedEvent)
}

// Dispatcher subscribes to the bus's accepted-events topic and fans each
// message out to the live feed. Detection already ran synchronously in
// ingestion.Service.IngestBatch before the event reached the bus — this is
// the fire-and-forget broadcast path only. It implements suture.Service so
// it runs supervised alongside the rest of the collector.
type Dispatcher struct {
	bus  *Bus
	feed FeedPublisher
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(bus *Bus, feedPublisher FeedPublisher) *Dispatcher {
	return &Dispatcher{bus: bus, feed: feedPublisher}
}

// Serve subscribes to the bus and processes messages until ctx is
// canceled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	messages, err := d.bus.Subscribe(ctx, TopicEventsAccepted)
	if err != nil {
		return err
	}

	logging.Info().Msg("ingestion dispatcher started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("ingestion dispatcher stopped")
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			d.handle(msg)
		}
	}
}

func (d *Dispatcher) handle(msg *message.Message) {
	defer msg.Ack()

	var ev models.FailedLogin
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("failed to unmarshal accepted event")
		return
	}

	d.feed.Publish(models.FeedEvent{
		Type:      feed.EventTypeFailedLogin,
		Timestamp: time.Now(),
		Payload:   ev,
	})
}
