package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_http_requests_total",
			Help: "Total HTTP requests by method and status class",
		},
		[]string{"method", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// Audit runs
	AuditRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_runs_total",
			Help: "Audit runs by strategy and final status",
		},
		[]string{"strategy", "status"},
	)

	AuditRunsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_runs_running",
			Help: "Audit runs currently in flight",
		},
	)

	AuditRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_run_duration_seconds",
			Help:    "Audit run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		},
		[]string{"strategy"},
	)

	ClauseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_clause_cache_lookups_total",
			Help: "Clause cache lookups by outcome (hit, miss, error)",
		},
		[]string{"outcome"},
	)

	// Completion service
	CompletionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_completion_calls_total",
			Help: "Completion service calls by function and outcome",
		},
		[]string{"function", "outcome"},
	)

	CompletionRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_completion_rate_limit_retries_total",
			Help: "Retries caused by HTTP 429 from the completion service",
		},
		[]string{"function"},
	)

	CompletionCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_completion_call_duration_seconds",
			Help:    "Completion call duration including throttling and backoff",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"function"},
	)
)
