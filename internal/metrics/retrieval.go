package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "searches_total",
			Help:      "Total retrieval requests by strategy and mode",
		},
		[]string{"strategy", "mode", "status"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "provider_requests_total",
			Help:      "Total provider calls by operation",
		},
		[]string{"operation", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "model"},
	)

	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "tokens_total",
			Help:      "Tokens consumed by billable operation",
		},
		[]string{"operation", "model"},
	)

	PointsDebitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "points_debited_millipoints_total",
			Help:      "Points debited from accounts, in millipoints",
		},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "rerank_total",
			Help:      "Rerank outcomes per request",
		},
		[]string{"result"}, // "ran" / "skipped"
	)

	DeepRoundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "deep_rounds_total",
			Help:      "Deep search rounds executed",
		},
	)
)

var retrievalRegistered = false

// RegisterRetrievalMetrics registers retrieval metrics explicitly (no init()).
// Safe to call once from the composition root and once from test mains.
func RegisterRetrievalMetrics() {
	if retrievalRegistered {
		return
	}
	retrievalRegistered = true

	prometheus.MustRegister(
		SearchesTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		TokensTotal,
		PointsDebitedTotal,
		RateLimitedTotal,
		RerankTotal,
		DeepRoundsTotal,
	)
}
