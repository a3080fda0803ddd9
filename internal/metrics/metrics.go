// package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendations counts orchestrator runs by outcome (ok, degraded, empty, failed, cancelled).
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoes_recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "echoes_recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	CandidateStrategies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoes_candidate_strategy_total",
			Help: "Candidate acquisition attempts by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoes_upstream_requests_total",
			Help: "Calls to external providers by service and status code",
		},
		[]string{"service", "status"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoes_token_refresh_total",
			Help: "Credential refresh attempts by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoes_cache_lookups_total",
			Help: "Cache reads by cache name and result (hit, miss, expired)",
		},
		[]string{"cache", "result"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "echoes_circuit_breaker_state",
			Help: "Circuit breaker state per provider",
		},
		[]string{"breaker"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echoes_http_rate_limited_total",
			Help: "Inbound API requests rejected by the per-IP limiter",
		},
	)
)
