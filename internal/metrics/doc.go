// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring ingestion, detection, blocking, and API
performance.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput
  - Database query performance
  - Ingest batch/event acceptance
  - Detection rule evaluation and alert rate
  - Block lifecycle actions and firewall adapter / circuit breaker health
  - Live feed subscriber fan-out

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3000/metrics

# Usage Example

	import (
	    "time"

	    "github.com/loginwatch/sentinel/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())
	    metrics.RecordAPIRequest("GET", "/api/v1/suspicious", "200", 23*time.Millisecond)
	    metrics.RecordIngestBatch("WIN-HOST-01", "accepted", 12)
	}

# Prometheus Configuration

	scrape_configs:
	  - job_name: 'sentinel-collector'
	    static_configs:
	      - targets: ['localhost:3000']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Example PromQL queries

	# API p95 latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))

	# Detection alert rate
	rate(detection_alerts_total[5m])

	# Active blocks by scope
	blocks_active

# Cardinality

Endpoint labels are normalized (no query parameters), host_id cardinality is
bounded by fleet size, and circuit breaker names are fixed constants.

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/database: database query metrics recording
  - internal/blockmanager: circuit breaker and firewall adapter metrics
*/
package metrics
