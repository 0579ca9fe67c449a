package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search ranking Prometheus metrics.
var (
	SearchRawResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "listingsearch",
			Name:      "search_raw_results",
			Help:      "Raw k-NN candidates returned by the store per query",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	SearchKeptResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "listingsearch",
			Name:      "search_kept_results",
			Help:      "Results kept after the relevance cutoff per query",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	SearchCutoffTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingsearch",
			Name:      "search_cutoff_total",
			Help:      "Relevance cutoff outcomes",
		},
		[]string{"outcome"}, // "trimmed" / "kept_all" / "bypassed"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRawResults)
	prometheus.MustRegister(SearchKeptResults)
	prometheus.MustRegister(SearchCutoffTotal)
	searchMetricsRegistered = true
}
