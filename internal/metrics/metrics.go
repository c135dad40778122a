// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package metrics provides Prometheus metrics for observability:
// HTTP request latency and throughput, dataset load outcomes,
// recommendation latency and cache efficiency. Exposed at /metrics in
// Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Dataset load metrics
	DatasetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_loads_total",
			Help: "Total number of dataset load attempts",
		},
		[]string{"outcome"}, // "success", "error", "rejected"
	)

	DatasetLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dataset_load_duration_seconds",
			Help:    "Duration of dataset loads including similarity computation",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	DatasetUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_users",
			Help: "User count of the currently loaded model",
		},
	)

	DatasetBooks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_books",
			Help: "Book count of the currently loaded model",
		},
	)

	DatasetRatings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_ratings",
			Help: "Rating count of the currently loaded model",
		},
	)

	DatasetGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_generation",
			Help: "Generation counter of the currently loaded model",
		},
	)

	// Recommendation metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // "success", "not_loaded", "unknown_user", "no_neighbors", "no_candidates", "error"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of recommendation computation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "recommendations"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordDatasetLoad records a load attempt and, on success, the shape of
// the installed model.
func RecordDatasetLoad(outcome string, duration time.Duration, users, books, ratings int, generation uint64) {
	DatasetLoadsTotal.WithLabelValues(outcome).Inc()
	if outcome != "success" {
		return
	}
	DatasetLoadDuration.Observe(duration.Seconds())
	DatasetUsers.Set(float64(users))
	DatasetBooks.Set(float64(books))
	DatasetRatings.Set(float64(ratings))
	DatasetGeneration.Set(float64(generation))
}

// RecordRecommendation records one recommendation request.
func RecordRecommendation(outcome string, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		RecommendationDuration.Observe(duration.Seconds())
	}
}

// RecordCacheHit records a cache hit for the given cache type.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBQuery records a database query duration and any error.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
