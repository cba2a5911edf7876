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

	"github.com/loginwatch/sentinel/internal/models"
)

func seedEvents(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.UpsertHost(ctx, "WIN-HOST-01", "win-host-01", "1.0.0"))
	require.NoError(t, db.UpsertHost(ctx, "WIN-HOST-02", "win-host-02", "1.0.0"))

	events := []models.FailedLogin{
		{HostID: "WIN-HOST-01", SourceIP: "203.0.113.1", TargetUsername: "administrator", EventTimestamp: now.Add(-30 * time.Minute), Fingerprint: "f1"},
		{HostID: "WIN-HOST-01", SourceIP: "203.0.113.1", TargetUsername: "administrator", EventTimestamp: now.Add(-2 * time.Hour), Fingerprint: "f2"},
		{HostID: "WIN-HOST-01", SourceIP: "203.0.113.2", TargetUsername: "guest", EventTimestamp: now.Add(-10 * time.Hour), Fingerprint: "f3"},
	}
	for _, e := range events {
		require.NoError(t, db.InsertFailedLogin(ctx, e))
	}
}

func TestGetStatistics(t *testing.T) {
	db := openTestDB(t)
	seedEvents(t, db)

	stats, err := db.GetStatistics(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalFailedAttempts)
	require.EqualValues(t, 2, stats.UniqueSourceIPs)
	require.EqualValues(t, 1, stats.LastHour)
	require.EqualValues(t, 3, stats.Last24h)
	require.Len(t, stats.HourlyHistogram, 24)
	require.NotEmpty(t, stats.TopUsernames)
}

func TestGetGlobalStatistics_PerHostBreakdown(t *testing.T) {
	db := openTestDB(t)
	seedEvents(t, db)

	stats, err := db.GetGlobalStatistics(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.PerHost, 2)
	require.Equal(t, 2, stats.ActiveHosts)
	require.Equal(t, 0, stats.InactiveHosts)
}

func TestGetHostAttacks(t *testing.T) {
	db := openTestDB(t)
	seedEvents(t, db)

	stats, err := db.GetHostAttacks(context.Background(), "WIN-HOST-01")
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalFailedAttempts)
	require.EqualValues(t, 2, stats.UniqueAttackers)
	require.NotEmpty(t, stats.TopSourceIPs)
}

func TestGetHostAttacks_NoEventsReturnsEmptyProjection(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.UpsertHost(context.Background(), "WIN-HOST-03", "win-host-03", "1.0.0"))

	stats, err := db.GetHostAttacks(context.Background(), "WIN-HOST-03")
	require.NoError(t, err)
	require.Equal(t, "WIN-HOST-03", stats.HostID)
	require.Zero(t, stats.TotalFailedAttempts)
}

func TestDeregisterHost(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertHost(ctx, "WIN-HOST-04", "win-host-04", "1.0.0"))

	require.NoError(t, db.DeregisterHost(ctx, "WIN-HOST-04"))

	_, err := db.GetHost(ctx, "WIN-HOST-04")
	require.Error(t, err)
}

func TestDeregisterHost_UnknownHostReturnsErrNoRows(t *testing.T) {
	db := openTestDB(t)
	err := db.DeregisterHost(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
