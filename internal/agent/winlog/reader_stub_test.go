// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

//go:build !windows

package winlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_StubReturnsNoEvents(t *testing.T) {
	src, err := Open(4625)
	require.NoError(t, err)
	defer src.Close()

	back, err := src.ReadBackward(context.Background(), 0, 50)
	require.NoError(t, err)
	require.Empty(t, back)

	fwd, err := src.ReadForward(context.Background(), 0, 50)
	require.NoError(t, err)
	require.Empty(t, fwd)
}

func TestWait_StubRespectsTimeout(t *testing.T) {
	src, err := Open(4625)
	require.NoError(t, err)
	defer src.Close()

	start := time.Now()
	signaled, err := src.Wait(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, signaled)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWait_StubHonorsContextCancellation(t *testing.T) {
	src, err := Open(4625)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Wait(ctx, time.Second)
	require.Error(t, err)
}
