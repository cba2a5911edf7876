// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

/*
Package middleware provides the collector's HTTP request middleware:
gzip compression, request-ID/correlation-ID tagging, Prometheus
instrumentation, and latency tracking. internal/api/router.go wires all
four, plus CORS and IP rate limiting from go-chi, into one chi.Router.

Request ID:

	http.HandleFunc("/api/v1/logs", middleware.RequestID(handler))

	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("handling request")
	}

RequestID both stores the ID under its own context key (GetRequestID)
and forwards it, plus a freshly generated correlation ID, into
internal/logging's context keys so logging.Ctx(ctx) can attach both to
every log line from that request onward.

Compression:

	http.HandleFunc("/api/v1/data", middleware.Compression(handler))

Gzip-encodes any response when the client sends Accept-Encoding: gzip,
except requests for the SSE feed (Accept: text/event-stream), which
need an unbuffered, flushable ResponseWriter.

Performance monitoring:

	pm := middleware.NewPerformanceMonitor(1000) // keep the last 1000 requests
	r.Use(pm.Middleware)
	stats := pm.GetStats() // per-endpoint count, avg, p50/p95/p99 latency

Prometheus metrics:

	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Records request count, status, latency, and in-flight count through
internal/metrics for every request.
*/
package middleware
