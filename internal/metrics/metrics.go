package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics
var (
	// CacheHitsTotal tracks cache hits by key namespace
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by key namespace",
		},
		[]string{"namespace"},
	)

	// CacheMissesTotal tracks cache misses by key namespace
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by key namespace",
		},
		[]string{"namespace"},
	)
)

// Fetcher metrics
var (
	// FetchesTotal tracks live content source calls by operation and status
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetches_total",
			Help: "Live content source calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	// LoginAttemptsTotal tracks session login attempts by strategy and status
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Session login attempts by strategy and status",
		},
		[]string{"strategy", "status"},
	)
)

// Scorer metrics
var (
	// OracleCallsTotal tracks classification oracle calls by status
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_calls_total",
			Help: "Classification oracle calls by status",
		},
		[]string{"status"},
	)

	// ScoringErrorsTotal tracks per-item scoring failures
	ScoringErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_errors_total",
			Help: "Per-item scoring failures",
		},
	)
)

// Pipeline metrics
var (
	// PipelineCyclesTotal tracks pipeline cycles by outcome
	PipelineCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_cycles_total",
			Help: "Pipeline cycles by outcome (success/failure/skipped)",
		},
		[]string{"outcome"},
	)

	// PipelineCycleDuration tracks full cycle duration in seconds
	PipelineCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_cycle_duration_seconds",
			Help:    "Full pipeline cycle duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	// SignificantItems tracks significant item count of the last cycle
	SignificantItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_significant_items",
			Help: "Significant items selected by the last cycle",
		},
	)
)

// Redis resilience metrics
var (
	// CircuitBreakerState tracks the current breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// CircuitBreakerTransitionsTotal tracks breaker state transitions
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)
)

// Job queue metrics
var (
	// JobAttemptsTotal tracks job attempts by job name and outcome
	JobAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_attempts_total",
			Help: "Job attempts by job name and outcome (done/retried/abandoned/skipped)",
		},
		[]string{"job", "outcome"},
	)
)

// WebSocket metrics
var (
	// DigestSubscribers tracks currently connected websocket clients
	DigestSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digest_subscribers",
			Help: "Currently connected websocket digest subscribers",
		},
	)
)
