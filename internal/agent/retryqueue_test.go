// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loginwatch/sentinel/internal/models"
)

func TestRetryQueue_PushAndSnapshot(t *testing.T) {
	q := newRetryQueue(10)
	q.Push(models.FailedLogin{SourceIP: "10.0.0.1"})
	q.Push(models.FailedLogin{SourceIP: "10.0.0.2"})

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, 2, q.Len())
}

func TestRetryQueue_DropsOldestOnOverflow(t *testing.T) {
	q := newRetryQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(models.FailedLogin{SourcePort: i})
	}

	snap := q.Snapshot()
	require.Len(t, snap, 3)
	// The two oldest (port 0, 1) should have been dropped first.
	require.Equal(t, 2, snap[0].SourcePort)
	require.Equal(t, 4, snap[len(snap)-1].SourcePort)
	require.EqualValues(t, 2, q.Dropped())
}

func TestRetryQueue_ClearRemovesSentPrefix(t *testing.T) {
	q := newRetryQueue(10)
	q.Push(models.FailedLogin{SourcePort: 1})
	q.Push(models.FailedLogin{SourcePort: 2})
	q.Push(models.FailedLogin{SourcePort: 3})

	snap := q.Snapshot()
	q.Clear(len(snap))

	require.Equal(t, 0, q.Len())
}

func TestRetryQueue_ClearRetainsEventsPushedDuringSend(t *testing.T) {
	q := newRetryQueue(10)
	q.Push(models.FailedLogin{SourcePort: 1})
	snap := q.Snapshot()

	// Simulate a Push racing with an in-flight send.
	q.Push(models.FailedLogin{SourcePort: 2})
	q.Clear(len(snap))

	require.Equal(t, 1, q.Len())
	require.Equal(t, 2, q.Snapshot()[0].SourcePort)
}
