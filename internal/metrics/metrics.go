// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the collector and agent binaries:
// - database query performance (DuckDB)
// - API endpoint latency and throughput
// - ingestion batch acceptance
// - detection engine rule evaluation
// - block lifecycle and firewall adapter / circuit breaker health
// - live feed subscriber fan-out

var (
	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// API endpoint metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Ingestion metrics

	IngestBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_batches_total",
			Help: "Total number of event batches received from agents",
		},
		[]string{"host_id", "result"}, // result: "accepted", "partial"
	)

	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Total number of failed-login events ingested",
		},
		[]string{"host_id", "outcome"}, // outcome: "inserted", "duplicate"
	)

	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_size",
			Help:    "Number of events per ingest batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Detection engine metrics

	DetectionEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_evaluations_total",
			Help: "Total number of detection rule evaluations",
		},
		[]string{"rule"}, // "global_threshold", "per_host_threshold"
	)

	DetectionAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_alerts_total",
			Help: "Total number of suspicious-IP alerts raised",
		},
		[]string{"rule"},
	)

	DetectionEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_evaluation_duration_seconds",
			Help:    "Duration of a detection engine pass over one event",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Block manager metrics

	BlockActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "block_actions_total",
			Help: "Total number of block lifecycle actions",
		},
		[]string{"action", "scope", "result"}, // action: create/expire/unblock; scope: global/per_host
	)

	BlocksActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blocks_active",
			Help: "Current number of active IP blocks",
		},
		[]string{"scope"},
	)

	FirewallAdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firewall_adapter_call_duration_seconds",
			Help:    "Duration of firewall adapter calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "block", "unblock"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Live feed metrics

	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_subscribers",
			Help: "Current number of connected live feed (SSE) subscribers",
		},
	)

	FeedEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_events_sent_total",
			Help: "Total number of events sent to live feed subscribers",
		},
	)

	FeedEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_dropped_total",
			Help: "Total number of events dropped because a subscriber's channel was full",
		},
		[]string{"reason"},
	)

	// System metrics

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngestBatch records the outcome of an ingest batch submission.
func RecordIngestBatch(hostID, result string, size int) {
	IngestBatchesTotal.WithLabelValues(hostID, result).Inc()
	if result == "accepted" {
		IngestBatchSize.Observe(float64(size))
	}
}

// RecordIngestEvent records a single ingested event's outcome.
func RecordIngestEvent(hostID, outcome string) {
	IngestEventsTotal.WithLabelValues(hostID, outcome).Inc()
}

// RecordDetectionEvaluation records a rule evaluation and whether it fired.
func RecordDetectionEvaluation(rule string, duration time.Duration, alerted bool) {
	DetectionEvaluationsTotal.WithLabelValues(rule).Inc()
	DetectionEvaluationDuration.Observe(duration.Seconds())
	if alerted {
		DetectionAlertsTotal.WithLabelValues(rule).Inc()
	}
}

// RecordBlockAction records a block lifecycle action outcome.
func RecordBlockAction(action, scope, result string) {
	BlockActionsTotal.WithLabelValues(action, scope, result).Inc()
}

// RecordFirewallAdapterCall records the duration of a firewall adapter call.
func RecordFirewallAdapterCall(operation string, duration time.Duration) {
	FirewallAdapterCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFeedEvent records a feed broadcast outcome for one subscriber.
func RecordFeedEvent(delivered bool, dropReason string) {
	if delivered {
		FeedEventsSent.Inc()
		return
	}
	FeedEventsDropped.WithLabelValues(dropReason).Inc()
}
