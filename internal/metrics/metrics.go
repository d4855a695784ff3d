// Package metrics holds the Prometheus collectors for the meme engine.
// Labels are kept to small fixed sets (provider name, outcome, path).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ProviderRequests counts provider calls by outcome: ok, empty, error, open.
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_provider_requests_total",
			Help: "Provider calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// Deliveries counts successful deliveries by path (cache or fetch).
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_deliveries_total",
			Help: "Delivered memes by path and language.",
		},
		[]string{"path", "language"},
	)

	// FetchFailures counts requests that ended without a meme.
	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_fetch_failures_total",
			Help: "Failed meme requests by reason.",
		},
		[]string{"reason"},
	)

	// FetchAttempts observes how many aggregator draws a miss needed.
	FetchAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memebot_fetch_attempts",
			Help:    "Aggregator draws per cache miss.",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		},
	)

	// LockRejections counts commands refused by the action lock.
	LockRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_lock_rejections_total",
			Help: "Commands rejected by the action lock by reason.",
		},
		[]string{"reason"},
	)

	// FilesPruned counts files removed by the retention sweep.
	FilesPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memebot_files_pruned_total",
			Help: "Materialized images removed by retention.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequests,
		Deliveries,
		FetchFailures,
		FetchAttempts,
		LockRejections,
		FilesPruned,
	)
}
