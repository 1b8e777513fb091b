// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package metrics registers the Prometheus collectors served on /metrics.
//
// Collectors are package globals created with promauto, and callers use the
// Record* helpers rather than touching label values directly.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
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
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90}, // Sync fills can take a minute
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of inventory store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of inventory store query errors",
		},
		[]string{"operation", "table"},
	)

	// Gemini Provider Metrics
	GeminiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemini_requests_total",
			Help: "Total number of generateContent calls by final outcome",
		},
		[]string{"model", "outcome"}, // outcome: "success", "http_error", "request_error", "rejected"
	)

	GeminiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemini_request_duration_seconds",
			Help:    "Duration of generateContent calls including retries",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model"},
	)

	GeminiRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemini_retries_total",
			Help: "Total number of retried generateContent attempts",
		},
		[]string{"model", "reason"}, // reason: HTTP status code or "transport"
	)

	// Circuit Breaker Metrics
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
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Refill Metrics
	RefillCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_cycles_total",
			Help: "Total number of finished refill cycles",
		},
		[]string{"kind", "status"}, // status: "done", "failed"
	)

	RefillCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refill_cycle_duration_seconds",
			Help:    "Duration of refill cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	RefillSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_skipped_total",
			Help: "Refill triggers that did not start a cycle",
		},
		[]string{"reason"}, // reason: "in_flight", "queue_full", "lease_held"
	)

	RefillQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refill_queue_depth",
			Help: "Refill requests waiting for the worker",
		},
	)

	DishesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishes_created_total",
			Help: "Dishes persisted to the inventory",
		},
		[]string{"path"}, // path: "sync_fill", "refill"
	)

	DishesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dishes_skipped_total",
			Help: "Generated dishes dropped because the name already existed",
		},
	)

	DishImagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dish_images_total",
			Help: "Image enrichment attempts by result",
		},
		[]string{"result"}, // result: "stored", "failed", "disabled"
	)

	// Deck Metrics
	DeckRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deck_requests_total",
			Help: "Served decks by composite source",
		},
		[]string{"source"},
	)

	DeckErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deck_errors_total",
			Help: "Deck requests that failed",
		},
		[]string{"reason"}, // reason: "upstream", "capacity", "store"
	)

	InventoryReadyDishes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inventory_ready_dishes",
			Help: "Ready dishes at the last count",
		},
	)

	// Analyzer Metrics
	AnalyzeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyze_cache_hits_total",
			Help: "Analyze requests answered from the cache",
		},
	)

	AnalyzeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyze_cache_misses_total",
			Help: "Analyze requests sent upstream",
		},
	)

	AnalyzeCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyze_cache_entries",
			Help: "Entries held by the analyze cache, including expired ones not yet swept",
		},
	)

	AnalyzeCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyze_cache_hit_ratio",
			Help: "Lifetime analyze cache hit ratio (0-1)",
		},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Inventory events published by topic and result",
		},
		[]string{"topic", "result"}, // result: "ok", "error"
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records a store query and counts it as an error when err is set.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordGeminiCall records the final outcome of one Generate call.
func RecordGeminiCall(model, outcome string, duration time.Duration) {
	GeminiRequestsTotal.WithLabelValues(model, outcome).Inc()
	GeminiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordGeminiRetry counts a retried attempt. status is 0 for transport errors.
func RecordGeminiRetry(model string, status int) {
	reason := "transport"
	if status > 0 {
		reason = strconv.Itoa(status)
	}
	GeminiRetriesTotal.WithLabelValues(model, reason).Inc()
}

// RecordRefillCycle records a finished refill cycle.
func RecordRefillCycle(kind string, produced int, duration time.Duration, err error) {
	status := "done"
	if err != nil {
		status = "failed"
	}
	RefillCyclesTotal.WithLabelValues(kind, status).Inc()
	RefillCycleDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if produced > 0 {
		DishesCreatedTotal.WithLabelValues("refill").Add(float64(produced))
	}
}

// RecordRefillSkipped counts a trigger that did not start a cycle.
func RecordRefillSkipped(reason string) {
	RefillSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordDeckServed counts a served deck by its source tag.
func RecordDeckServed(source string) {
	DeckRequestsTotal.WithLabelValues(source).Inc()
}

// RecordDeckError counts a failed deck request.
func RecordDeckError(reason string) {
	DeckErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordEventPublish counts a published event.
func RecordEventPublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublishedTotal.WithLabelValues(topic, result).Inc()
}

// SetReadyDishes updates the inventory gauge.
func SetReadyDishes(n int) {
	InventoryReadyDishes.Set(float64(n))
}

// RecordAnalyzeCache counts one analyze cache lookup and refreshes the size
// and hit ratio gauges.
func RecordAnalyzeCache(hit bool, entries int, hitRate float64) {
	if hit {
		AnalyzeCacheHits.Inc()
	} else {
		AnalyzeCacheMisses.Inc()
	}
	AnalyzeCacheEntries.Set(float64(entries))
	AnalyzeCacheHitRatio.Set(hitRate / 100)
}
