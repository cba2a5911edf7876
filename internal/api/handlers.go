// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package api

import (
	"bufio"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/loginwatch/sentinel/internal/blockmanager"
	"github.com/loginwatch/sentinel/internal/database"
	"github.com/loginwatch/sentinel/internal/feed"
	"github.com/loginwatch/sentinel/internal/ingestion"
	"github.com/loginwatch/sentinel/internal/logging"
	"github.com/loginwatch/sentinel/internal/models"
	"github.com/loginwatch/sentinel/internal/validation"
)

// Handler holds every dependency the collector's HTTP surface needs. It
// carries no business logic of its own beyond request decoding, response
// shaping, and IP/body validation — the real work lives in database,
// blockmanager, ingestion, and feed.
type Handler struct {
	db        *database.DB
	blocks    *blockmanager.Manager
	ingest    *ingestion.Service
	feedHub   *feed.Hub
	startedAt time.Time
}

// NewHandler wires a Handler around the collector's core services.
func NewHandler(db *database.DB, blocks *blockmanager.Manager, ingest *ingestion.Service, feedHub *feed.Hub) *Handler {
	return &Handler{db: db, blocks: blocks, ingest: ingest, feedHub: feedHub, startedAt: time.Now()}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// GetSuspicious handles GET /suspicious-ips?threshold=N.
func (h *Handler) GetSuspicious(w http.ResponseWriter, r *http.Request) {
	threshold := int64(5)
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "threshold must be an integer")
			return
		}
		threshold = parsed
	}

	ips, err := h.db.GetSuspicious(r.Context(), threshold)
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{"suspicious_ips": ips})
}

// GetStatistics handles GET /statistics.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStatistics(r.Context())
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{"statistics": stats})
}

// GetGlobalStatistics handles GET /statistics/global.
func (h *Handler) GetGlobalStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetGlobalStatistics(r.Context())
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{"statistics": stats})
}

type blockedIPView struct {
	models.Block
	AutoBlocked bool `json:"auto_blocked"`
}

// GetBlocked handles GET /blocked-ips.
func (h *Handler) GetBlocked(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.db.ListActiveBlocks(r.Context())
	if err != nil {
		respondFromError(w, err)
		return
	}

	out := make([]blockedIPView, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockedIPView{Block: b, AutoBlocked: strings.Contains(b.Reason, "threshold exceeded")})
	}
	respondSuccess(w, envelope{"blocked_ips": out})
}

type createBlockRequest struct {
	IPAddress       string `json:"ip_address" validate:"required"`
	Reason          string `json:"reason" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1"`
}

// CreateGlobalBlock handles POST /block.
func (h *Handler) CreateGlobalBlock(w http.ResponseWriter, r *http.Request) {
	var req createBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		respondError(w, http.StatusBadRequest, ve.Error())
		return
	}
	if !validIP(req.IPAddress) {
		respondError(w, http.StatusBadRequest, "ip_address is not a valid IPv4 or IPv6 address")
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	block, err := h.blocks.CreateBlock(r.Context(), req.IPAddress, models.BlockScopeGlobal, "", req.Reason, duration)
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccessStatus(w, http.StatusCreated, envelope{"block": block})
}

type createPerHostBlockRequest struct {
	IPAddress       string `json:"ip_address" validate:"required"`
	VMID            string `json:"vm_id" validate:"required"`
	Reason          string `json:"reason" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1"`
}

// CreatePerHostBlock handles POST /block/per-vm.
func (h *Handler) CreatePerHostBlock(w http.ResponseWriter, r *http.Request) {
	var req createPerHostBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		respondError(w, http.StatusBadRequest, ve.Error())
		return
	}
	if !validIP(req.IPAddress) {
		respondError(w, http.StatusBadRequest, "ip_address is not a valid IPv4 or IPv6 address")
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	block, err := h.blocks.CreateBlock(r.Context(), req.IPAddress, models.BlockScopePerHost, req.VMID, req.Reason, duration)
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccessStatus(w, http.StatusCreated, envelope{"block": block})
}

// Unblock handles DELETE /block/{ip}.
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if !validIP(ip) {
		respondError(w, http.StatusBadRequest, "ip is not a valid IPv4 or IPv6 address")
		return
	}

	if err := h.blocks.Unblock(r.Context(), ip); err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{})
}

// GeoAttacks handles GET /geo-attacks. Geolocation enrichment of attacking
// IPs is out of scope — this is the stub the contract explicitly allows.
func (h *Handler) GeoAttacks(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, envelope{"attacks": []interface{}{}})
}

type registerHostRequest struct {
	HostID           string `json:"host_id" validate:"required"`
	HostName         string `json:"host_name" validate:"required"`
	HostIP           string `json:"host_ip"`
	CollectionMethod string `json:"collection_method"`
}

// RegisterHost handles POST /vms.
func (h *Handler) RegisterHost(w http.ResponseWriter, r *http.Request) {
	var req registerHostRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		respondError(w, http.StatusBadRequest, ve.Error())
		return
	}
	if req.HostIP != "" && !validIP(req.HostIP) {
		respondError(w, http.StatusBadRequest, "host_ip is not a valid IPv4 or IPv6 address")
		return
	}

	collectionMethod := req.CollectionMethod
	if collectionMethod == "" {
		collectionMethod = models.CollectionMethodAgent
	}

	if err := h.ingest.RegisterHost(r.Context(), req.HostID, req.HostName, req.HostIP, collectionMethod); err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccessStatus(w, http.StatusCreated, envelope{"host_id": req.HostID})
}

// ListHosts handles GET /vms.
func (h *Handler) ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.db.ListHosts(r.Context())
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{"hosts": hosts})
}

// DeregisterHost handles DELETE /vms/{id}.
func (h *Handler) DeregisterHost(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "id")
	if err := h.db.DeregisterHost(r.Context(), hostID); err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{})
}

// GetHostAttacks handles GET /vms/{id}/attacks.
func (h *Handler) GetHostAttacks(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "id")
	stats, err := h.db.GetHostAttacks(r.Context(), hostID)
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{"attacks": stats})
}

// IngestBatch handles POST /events.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var batch models.EventBatch
	if err := decodeJSON(r, &batch); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if ve := validation.ValidateStruct(&batch); ve != nil {
		respondError(w, http.StatusBadRequest, ve.Error())
		return
	}
	for _, ev := range batch.Events {
		ip := ev.SourceIP
		if ip == "" {
			continue
		}
		if !validIP(ip) {
			respondError(w, http.StatusBadRequest, "event source_ip is not a valid IPv4 or IPv6 address")
			return
		}
	}

	accepted, err := h.ingest.IngestBatch(r.Context(), batch)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("host_id", batch.HostID).Msg("ingest batch failed")
		respondFromError(w, err)
		return
	}
	respondSuccess(w, envelope{"accepted": accepted})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db.Ping(r.Context()) == nil

	hosts, err := h.db.ListHosts(r.Context())
	activeHosts := 0
	if err == nil {
		cutoff := time.Now().Add(-24 * time.Hour)
		for _, host := range hosts {
			if host.LastSeenAt.After(cutoff) {
				activeHosts++
			}
		}
	}

	status := "ok"
	if !dbConnected {
		status = "degraded"
	}

	respondSuccess(w, envelope{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"active_hosts":   activeHosts,
		"db_connected":   dbConnected,
	})
}

// Feed handles GET /feed: a server-sent-events stream of live attack frames.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	feed.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.feedHub.Subscribe()
	defer h.feedHub.Unsubscribe(sub)

	bw := bufio.NewWriter(w)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := feed.WriteSSE(bw, flusher, event); err != nil {
				logging.Error().Err(err).Msg("failed to write sse frame")
				return
			}
		}
	}
}
