// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchLatencySeconds measures Search end to end, by outcome.
	SearchLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upksearch_search_latency_seconds",
			Help:    "Latency of semantic search calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"},
	)

	// SearchResultsReturned tracks how many results each search returned.
	SearchResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upksearch_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	// CandidatesDropped counts over-fetched candidates not returned, by reason.
	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upksearch_candidates_dropped_total",
			Help: "Ranked candidates dropped after over-fetch, by reason",
		},
		[]string{"reason"},
	)

	// IndexEntries is the size of the resident index.
	IndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upksearch_index_entries",
			Help: "Number of vectors in the resident index",
		},
	)

	// IndexBuildSeconds measures full index rebuilds.
	IndexBuildSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upksearch_index_build_seconds",
			Help:    "Duration of full index rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// EmbedRequestsTotal counts provider calls by provider and outcome.
	EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upksearch_embed_requests_total",
			Help: "Embedding provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upksearch_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)
)
