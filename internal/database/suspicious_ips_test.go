// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpsertSuspiciousIPOnEvent_CreatesThenIncrements(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.InsertFailedLogin(ctx, sampleEvent("198.51.100.1", now)))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.1", "host-1", "administrator", now))

	ev2 := sampleEvent("198.51.100.1", now.Add(time.Second))
	ev2.SourcePort = 40001
	require.NoError(t, db.InsertFailedLogin(ctx, ev2))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.1", "host-1", "administrator", now.Add(time.Second)))

	ip, err := db.GetSuspiciousIP(ctx, "198.51.100.1")
	require.NoError(t, err)
	require.EqualValues(t, 2, ip.LifetimeFailureCount)
	require.EqualValues(t, 1, ip.DistinctHostsAttacked)
	require.EqualValues(t, 1, ip.DistinctUsersTried)
}

func TestUpsertSuspiciousIPOnEvent_DistinctHostsAcrossAttacks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	ev1 := sampleEvent("198.51.100.2", now)
	ev1.HostID = "host-a"
	ev2 := sampleEvent("198.51.100.2", now)
	ev2.HostID = "host-b"
	ev2.SourcePort = 50002

	require.NoError(t, db.InsertFailedLogin(ctx, ev1))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.2", "host-a", "administrator", now))
	require.NoError(t, db.InsertFailedLogin(ctx, ev2))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.2", "host-b", "administrator", now))

	ip, err := db.GetSuspiciousIP(ctx, "198.51.100.2")
	require.NoError(t, err)
	require.EqualValues(t, 2, ip.DistinctHostsAttacked)
}

func TestSetSuspiciousIPBlocked(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.InsertFailedLogin(ctx, sampleEvent("198.51.100.3", now)))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.3", "host-1", "administrator", now))
	require.NoError(t, db.SetSuspiciousIPBlocked(ctx, "198.51.100.3", true))

	ip, err := db.GetSuspiciousIP(ctx, "198.51.100.3")
	require.NoError(t, err)
	require.True(t, ip.CurrentlyBlocked)
}

func TestGetSuspiciousIP_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetSuspiciousIP(context.Background(), "203.0.113.255")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGetSuspicious_RankedByLifetimeCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	low := sampleEvent("198.51.100.10", now)
	require.NoError(t, db.InsertFailedLogin(ctx, low))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.10", "host-1", "administrator", now))

	high1 := sampleEvent("198.51.100.11", now)
	high1.SourcePort = 1
	require.NoError(t, db.InsertFailedLogin(ctx, high1))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.11", "host-1", "administrator", now))
	high2 := sampleEvent("198.51.100.11", now.Add(time.Second))
	high2.SourcePort = 2
	require.NoError(t, db.InsertFailedLogin(ctx, high2))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.11", "host-1", "administrator", now.Add(time.Second)))

	out, err := db.GetSuspicious(ctx, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 2)
	require.Equal(t, "198.51.100.11", out[0].SourceIP)
}

func TestGetSuspicious_ExcludesCurrentlyBlocked(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.InsertFailedLogin(ctx, sampleEvent("198.51.100.20", now)))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.20", "host-1", "administrator", now))
	require.NoError(t, db.SetSuspiciousIPBlocked(ctx, "198.51.100.20", true))

	out, err := db.GetSuspicious(ctx, 1)
	require.NoError(t, err)
	for _, ip := range out {
		require.NotEqual(t, "198.51.100.20", ip.SourceIP)
	}
}

func TestGetSuspicious_FiltersBelowThreshold(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.InsertFailedLogin(ctx, sampleEvent("198.51.100.21", now)))
	require.NoError(t, db.UpsertSuspiciousIPOnEvent(ctx, "198.51.100.21", "host-1", "administrator", now))

	out, err := db.GetSuspicious(ctx, 5)
	require.NoError(t, err)
	for _, ip := range out {
		require.NotEqual(t, "198.51.100.21", ip.SourceIP)
	}
}
