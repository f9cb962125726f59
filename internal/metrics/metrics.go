// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Recommendation request latency and outcomes
// - Per-strategy candidate production and failures
// - Feedback ingestion
// - Preference persistence
// - API endpoint latency and throughput

var (
	// Recommendation Metrics
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resona_recommendation_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_recommendations_total",
			Help: "Total recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok", "fallback", "empty", "invalid", "error"
	)

	StrategyCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_strategy_candidates_total",
			Help: "Total candidates produced per strategy",
		},
		[]string{"strategy"},
	)

	StrategyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_strategy_failures_total",
			Help: "Total strategy invocation failures",
		},
		[]string{"strategy"},
	)

	// Feedback Metrics
	FeedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_feedback_total",
			Help: "Total feedback events by type",
		},
		[]string{"type"}, // "like", "dislike", "skip", "neutral"
	)

	// Persistence Metrics
	PreferenceFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_preference_flushes_total",
			Help: "Total preference flush attempts by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resona_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resona_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordRecommendation records one recommendation request outcome.
func RecordRecommendation(outcome string, duration time.Duration) {
	RecommendationDuration.Observe(duration.Seconds())
	RecommendationsServed.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// RecordFlush records one preference flush attempt.
func RecordFlush(err error) {
	if err != nil {
		PreferenceFlushes.WithLabelValues("error").Inc()
		return
	}
	PreferenceFlushes.WithLabelValues("ok").Inc()
}
