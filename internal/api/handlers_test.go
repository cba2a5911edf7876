// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/loginwatch/sentinel/internal/blockmanager"
	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/database"
	"github.com/loginwatch/sentinel/internal/detection"
	"github.com/loginwatch/sentinel/internal/feed"
	"github.com/loginwatch/sentinel/internal/ingestion"
	"github.com/loginwatch/sentinel/internal/models"
)

// newTestHandler wires a Handler against a throwaway in-memory DB, a noop
// firewall adapter, and a real feed hub, mirroring how cmd/collector
// assembles the same pieces at startup.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db := openTestDB(t)

	blockCfg := config.BlockConfig{
		GlobalBlockDuration:  3600000000000,
		PerHostBlockDuration: 1800000000000,
		CircuitMaxFailures:   5,
		CircuitOpenTimeout:   30000000000,
	}
	manager := blockmanager.NewManager(db, &blockmanager.NoopAdapter{}, blockCfg)

	detectionCfg := config.DetectionConfig{
		GlobalThreshold:  20,
		GlobalWindow:     5 * time.Minute,
		PerHostThreshold: 5,
		PerHostWindow:    5 * time.Minute,
	}
	engine := detection.NewEngine(db, manager, detectionCfg)

	bus := ingestion.NewBus()
	ingestSvc := ingestion.NewService(db, bus, engine)
	feedHub := feed.NewHub(config.FeedConfig{SubscriberBufferSize: 8})

	return NewHandler(db, manager, ingestSvc, feedHub)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Hour,
	}
	db, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealth_ReportsDBConnected(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	h.Health(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, true, body["success"])
	require.Equal(t, true, body["db_connected"])
}

func TestCreateGlobalBlock_RejectsInvalidIP(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/block", strings.NewReader(`{"ip_address":"not-an-ip","reason":"test","duration_minutes":5}`))
	rr := httptest.NewRecorder()

	h.CreateGlobalBlock(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, false, body["success"])
}

func TestCreateGlobalBlock_Succeeds(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/block", strings.NewReader(`{"ip_address":"198.51.100.5","reason":"manual block","duration_minutes":30}`))
	rr := httptest.NewRecorder()

	h.CreateGlobalBlock(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, true, body["success"])
}

func TestUnblock_UnknownIPReturns404(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/block/203.0.113.9", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegisterHost_ThenListHosts(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vms", strings.NewReader(`{"host_id":"host-1","host_name":"WIN-ABC","host_ip":"10.0.0.5","collection_method":"forwarded"}`))
	rr := httptest.NewRecorder()
	h.RegisterHost(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/vms", nil)
	listRR := httptest.NewRecorder()
	h.ListHosts(listRR, listReq)
	require.Equal(t, http.StatusOK, listRR.Code)
	body := decodeBody(t, listRR)
	hosts, ok := body["hosts"].([]interface{})
	require.True(t, ok)
	require.Len(t, hosts, 1)
}

func TestRegisterHost_RejectsMissingFields(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vms", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	h.RegisterHost(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngestBatch_RejectsMalformedSourceIP(t *testing.T) {
	h := newTestHandler(t)
	batch := models.EventBatch{
		HostID:       "host-1",
		Hostname:     "win-host-1",
		AgentVersion: "1.0.0",
		Events: []models.FailedLogin{
			{HostID: "host-1", SourceIP: "bad-ip", TargetUsername: "administrator"},
		},
	}
	raw, err := json.Marshal(batch)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(string(raw)))
	rr := httptest.NewRecorder()

	h.IngestBatch(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetSuspicious_DefaultThreshold(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/suspicious-ips", nil)
	rr := httptest.NewRecorder()

	h.GetSuspicious(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, true, body["success"])
}

func TestGetSuspicious_RejectsNonIntegerThreshold(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/suspicious-ips?threshold=abc", nil)
	rr := httptest.NewRecorder()

	h.GetSuspicious(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

// newTestRouter builds the full chi mux so path-param handlers (Unblock,
// DeregisterHost, GetHostAttacks) can be exercised end to end.
func newTestRouter(h *Handler) http.Handler {
	return NewRouter(h, config.DefaultCollectorConfig().Server)
}
