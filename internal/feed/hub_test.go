// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package feed

import (
	"context"
	"testing"
	"time"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/models"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(config.FeedConfig{SubscriberBufferSize: 4})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func TestHub_SubscribeReceivesPublishedEvent(t *testing.T) {
	h, _ := startHub(t)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	h.Publish(models.FeedEvent{Type: EventTypeFailedLogin, Timestamp: time.Now()})

	select {
	case ev := <-sub.Events():
		require.Equal(t, EventTypeFailedLogin, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestHub_MultipleSubscribersAllReceive(t *testing.T) {
	h, _ := startHub(t)
	sub1 := h.Subscribe()
	sub2 := h.Subscribe()
	defer h.Unsubscribe(sub1)
	defer h.Unsubscribe(sub2)

	h.Publish(models.FeedEvent{Type: EventTypeBlockCreated, Timestamp: time.Now()})

	for _, sub := range []*Subscriber{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			require.Equal(t, EventTypeBlockCreated, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h, _ := startHub(t)
	sub := h.Subscribe()
	require.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub)
	// give the hub loop a moment to process the unregister
	require.Eventually(t, func() bool { return h.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)

	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h, _ := startHub(t)
	slow := h.Subscribe()
	fast := h.Subscribe()
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	// fill the slow subscriber's buffer without draining it
	for i := 0; i < 10; i++ {
		h.Publish(models.FeedEvent{Type: EventTypeFailedLogin, Timestamp: time.Now()})
	}

	// fast subscriber should still have gotten at least the first few events
	select {
	case <-fast.Events():
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved by slow one")
	}
}

func TestHub_SlowSubscriberDroppedAndClosed(t *testing.T) {
	h, _ := startHub(t)
	slow := h.Subscribe()
	require.Eventually(t, func() bool { return h.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	// Overflow the subscriber's buffer (size 4) without ever draining it.
	for i := 0; i < 10; i++ {
		h.Publish(models.FeedEvent{Type: EventTypeFailedLogin, Timestamp: time.Now()})
	}

	require.Eventually(t, func() bool { return h.SubscriberCount() == 0 },
		time.Second, 10*time.Millisecond, "slow subscriber must be dropped once its channel fills")

	_, ok := <-slow.Events()
	require.False(t, ok, "slow subscriber's channel must be closed, not just left full")
}

func TestHub_SubscriberCount(t *testing.T) {
	h, _ := startHub(t)
	require.Equal(t, 0, h.SubscriberCount())

	sub := h.Subscribe()
	require.Eventually(t, func() bool { return h.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)
	h.Unsubscribe(sub)
}
