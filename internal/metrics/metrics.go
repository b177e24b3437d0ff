// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package metrics provides Prometheus instrumentation for the mirror
// service: upstream API traffic, job execution, ingestion throughput and
// queue pressure. Everything is registered through promauto and exposed
// via the /metrics endpoint when the API server is enabled.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream TMDB API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_upstream_requests_total",
			Help: "Total number of upstream TMDB API requests",
		},
		[]string{"endpoint", "outcome"}, // outcome: "success", "not_found", "rate_limited", "error"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_upstream_request_duration_seconds",
			Help:    "Duration of upstream TMDB API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_upstream_retries_total",
			Help: "Total number of retried upstream requests",
		},
		[]string{"endpoint"},
	)

	UpstreamRateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmdb_upstream_rate_limit_wait_total",
			Help: "Total number of requests that waited on the local rate limiter",
		},
	)

	// Job Metrics
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_job_duration_seconds",
			Help:    "Duration of mirror jobs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600, 7200}, // full sweeps can run hours
		},
		[]string{"job"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_jobs_total",
			Help: "Total number of jobs executed",
		},
		[]string{"job", "result"}, // result: "success", "failure", "rejected"
	)

	JobLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tmdb_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per job kind",
		},
		[]string{"job"},
	)

	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tmdb_job_queue_depth",
			Help: "Current number of queued single-title jobs",
		},
	)

	JobQueueRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmdb_job_queue_rejections_total",
			Help: "Total number of jobs rejected because the queue was full",
		},
	)

	// Ingestion Metrics
	RowsFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_rows_flushed_total",
			Help: "Total number of rows flushed to PostgreSQL",
		},
		[]string{"table"},
	)

	FlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_flush_duration_seconds",
			Help:    "Duration of bulk insert flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	TitlesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_titles_processed_total",
			Help: "Total number of titles fetched and normalized",
		},
		[]string{"kind", "result"}, // kind: "movie", "series"; result: "success", "not_found", "error"
	)

	TitlesPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_titles_pruned_total",
			Help: "Total number of titles removed during prune passes",
		},
		[]string{"kind"},
	)

	GenerationSwaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_generation_swaps_total",
			Help: "Total number of staging-to-live table swaps",
		},
		[]string{"kind", "result"}, // result: "success", "aborted"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_db_query_duration_seconds",
			Help:    "Duration of PostgreSQL queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBPoolConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tmdb_db_pool_connections",
			Help: "Current number of acquired pool connections",
		},
	)

	// Webhook Metrics
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by final result",
		},
		[]string{"result"}, // "delivered", "failed"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_api_requests_total",
			Help: "Total number of REST API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_api_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tmdb_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordUpstreamRequest records one upstream API call with its outcome.
func RecordUpstreamRequest(endpoint, outcome string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a retried upstream request.
func RecordUpstreamRetry(endpoint string) {
	UpstreamRetriesTotal.WithLabelValues(endpoint).Inc()
}

// RecordJob records a finished job run.
func RecordJob(job string, duration time.Duration, err error) {
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		JobsTotal.WithLabelValues(job, "failure").Inc()
		return
	}
	JobsTotal.WithLabelValues(job, "success").Inc()
	JobLastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// RecordJobRejected records a job rejected by single-flight or the full queue.
func RecordJobRejected(job string) {
	JobsTotal.WithLabelValues(job, "rejected").Inc()
}

// UpdateQueueDepth updates the single-title job queue depth gauge.
func UpdateQueueDepth(depth int) {
	JobQueueDepth.Set(float64(depth))
}

// RecordFlush records a bulk insert flush to one table.
func RecordFlush(table string, rows int, duration time.Duration) {
	RowsFlushed.WithLabelValues(table).Add(float64(rows))
	FlushDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordTitle records the outcome of fetching and normalizing one title.
func RecordTitle(kind, result string) {
	TitlesProcessed.WithLabelValues(kind, result).Inc()
}

// RecordPrune records titles removed during a prune pass.
func RecordPrune(kind string, count int) {
	TitlesPruned.WithLabelValues(kind).Add(float64(count))
}

// RecordSwap records a staging-to-live generation swap.
func RecordSwap(kind string, aborted bool) {
	result := "success"
	if aborted {
		result = "aborted"
	}
	GenerationSwaps.WithLabelValues(kind, result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWebhookDelivery records the final result of one webhook delivery.
func RecordWebhookDelivery(delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	WebhookDeliveries.WithLabelValues(result).Inc()
}

// RecordAPIRequest records one REST API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a breaker state change and updates
// the state gauge.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
