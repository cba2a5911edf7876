// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/loginwatch/sentinel/internal/config"
	"github.com/loginwatch/sentinel/internal/middleware"
)

// performanceMonitorWindow bounds how many recent requests the
// performance monitor keeps for percentile calculations.
const performanceMonitorWindow = 1000

// chiMiddleware adapts the http.HandlerFunc-wrapping middleware this
// repo already has (RequestID, Compression, PrometheusMetrics) to chi's
// func(http.Handler) http.Handler convention, so both styles can live in
// the same r.Use() chain.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// NewRouter assembles the collector's HTTP surface per the query/command
// API contract: suspicious-ip listing, statistics, block management, the
// live feed, host registration, and event ingestion.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(middleware.NewPerformanceMonitor(performanceMonitorWindow).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/suspicious-ips", h.GetSuspicious)
		r.Get("/statistics", h.GetStatistics)
		r.Get("/statistics/global", h.GetGlobalStatistics)

		r.Get("/blocked-ips", h.GetBlocked)
		r.Post("/block", h.CreateGlobalBlock)
		r.Post("/block/per-vm", h.CreatePerHostBlock)
		r.Delete("/block/{ip}", h.Unblock)

		r.Get("/geo-attacks", h.GeoAttacks)

		r.Post("/vms", h.RegisterHost)
		r.Get("/vms", h.ListHosts)
		r.Delete("/vms/{id}", h.DeregisterHost)
		r.Get("/vms/{id}/attacks", h.GetHostAttacks)

		r.Post("/events", h.IngestBatch)

		// Live feed is mounted like every other route: the global
		// httprate.LimitByIP above gates only the initial connect, not
		// the long-lived stream, which the handler writes through a
		// bufio.Writer flushed after each frame.
		r.Get("/feed", h.Feed)
	})

	return r
}
