// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package feed

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/metrics"
	"github.com/loginwatch/sentinel/internal/models"
)

// Feed event types broadcast to live subscribers.
const (
	EventTypeFailedLogin   = "failed_login"
	EventTypeBlockCreated  = "block_created"
	EventTypeBlockReleased = "block_released"
)

var subscriberIDCounter atomic.Uint64

// Subscriber receives a copy of every event broadcast after it subscribes.
type Subscriber struct {
	id   uint64
	send chan models.FeedEvent
}

// Events returns the channel the HTTP handler should range over.
func (s *Subscriber) Events() <-chan models.FeedEvent { return s.send }

// Hub fans out FeedEvents to every connected SSE subscriber. It implements
// suture.Service (Serve(ctx) error) so it runs supervised.
type Hub struct {
	subscribers map[*Subscriber]bool
	broadcast   chan models.FeedEvent
	register    chan *Subscriber
	unregister  chan *Subscriber
	mu          sync.RWMutex
	bufferSize  int
}

// NewHub builds a Hub using cfg.SubscriberBufferSize for each subscriber's
// channel depth.
func NewHub(cfg config.FeedConfig) *Hub {
	bufferSize := cfg.SubscriberBufferSize
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		broadcast:   make(chan models.FeedEvent, 256),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber and returns it. Callers must call
// Unsubscribe when the client disconnects.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:   subscriberIDCounter.Add(1),
		send: make(chan models.FeedEvent, h.bufferSize),
	}
	h.register <- sub
	return sub
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.unregister <- sub
}

// Publish broadcasts event to every connected subscriber. If the hub's
// broadcast buffer is full, the event is dropped rather than blocking the
// publisher.
func (h *Hub) Publish(event models.FeedEvent) {
	select {
	case h.broadcast <- event:
	default:
		logging.Warn().Str("event_type", event.Type).Msg("feed broadcast channel full, dropping event")
		metrics.RecordFeedEvent(false, "broadcast_channel_full")
	}
}

// Serve runs the hub's event loop until ctx is canceled.
func (h *Hub) Serve(ctx context.Context) error {
	logging.Info().Msg("live feed hub started")

	for {
		select {
		case <-ctx.Done():
			h.closeAllSubscribers()
			logging.Info().Msg("live feed hub stopped")
			return ctx.Err()

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mu.Unlock()
			metrics.FeedSubscribers.Set(float64(count))
			logging.Info().Int("subscribers", count).Msg("feed subscriber connected")

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			count := len(h.subscribers)
			h.mu.Unlock()
			metrics.FeedSubscribers.Set(float64(count))
			logging.Info().Int("subscribers", count).Msg("feed subscriber disconnected")

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// deliver sends event to every subscriber in deterministic (id-ascending)
// order. A subscriber whose channel is already full is too slow to keep up
// with the feed — it is dropped and its channel closed rather than left
// registered to silently miss every event after this one.
func (h *Hub) deliver(event models.FeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, s := range subs {
		select {
		case s.send <- event:
			metrics.RecordFeedEvent(true, "")
		default:
			metrics.RecordFeedEvent(false, "subscriber_channel_full")
			delete(h.subscribers, s)
			close(s.send)
			logging.Warn().Uint64("subscriber_id", s.id).Msg("feed subscriber too slow, dropped and closed")
		}
	}

	metrics.FeedSubscribers.Set(float64(len(h.subscribers)))
}

func (h *Hub) closeAllSubscribers() {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, s := range subs {
		close(s.send)
		delete(h.subscribers, s)
	}
	metrics.FeedSubscribers.Set(0)
}

// SubscriberCount returns the current number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
