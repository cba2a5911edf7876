// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"sync"

	"github.com/loginwatch/sentinel/internal/models"
)

// retryQueue is a bounded FIFO of events awaiting delivery. A failed
// send leaves the queue untouched so the next drain retries the same
// batch; a successful send clears it. Overflow drops the oldest events
// first — silent beyond a log line, per the pipeline's documented
// failure semantics.
type retryQueue struct {
	mu       sync.Mutex
	events   []models.FailedLogin
	capacity int
	dropped  int64
}

func newRetryQueue(capacity int) *retryQueue {
	return &retryQueue{capacity: capacity}
}

// Push appends an event, evicting the oldest queued event if at
// capacity. Returns true if an eviction occurred.
func (q *retryQueue) Push(ev models.FailedLogin) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.events) >= q.capacity {
		q.events = q.events[1:]
		q.dropped++
		evicted = true
	}
	q.events = append(q.events, ev)
	return evicted
}

// Snapshot returns a copy of the currently queued events for a send
// attempt, without clearing them.
func (q *retryQueue) Snapshot() []models.FailedLogin {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	out := make([]models.FailedLogin, len(q.events))
	copy(out, q.events)
	return out
}

// Clear drops the first n events, used after a successful send of
// exactly those events. If the queue has since grown (a concurrent Push
// happened mid-send), only the sent prefix is removed.
func (q *retryQueue) Clear(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n >= len(q.events) {
		q.events = nil
		return
	}
	q.events = q.events[n:]
}

// Len reports the number of currently queued events.
func (q *retryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped reports the lifetime count of events evicted due to overflow.
func (q *retryQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
