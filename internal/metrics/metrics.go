package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "fundi_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundi_provider_calls_total",
			Help: "Provider calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundi_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"provider", "operation"},
	)

	RaceWinners = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundi_race_winner_total",
			Help: "Winner of each provider race (primary, secondary or none)",
		},
		[]string{"operation", "winner"},
	)

	FailureCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fundi_primary_failure_count",
			Help: "Current consecutive primary provider failure count",
		},
	)

	ForcedFallback = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fundi_forced_fallback",
			Help: "1 when the operator has forced the secondary provider",
		},
	)

	CrisisDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundi_crisis_detections_total",
			Help: "Crisis short-circuits by crisis type",
		},
		[]string{"type"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundi_classifications_total",
			Help: "Messages classified by category",
		},
		[]string{"category"},
	)
)
