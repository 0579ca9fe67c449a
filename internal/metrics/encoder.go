package metrics

import "github.com/prometheus/client_golang/prometheus"

// Encoder Prometheus metrics.
var (
	EncoderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingsearch",
			Name:      "encoder_requests_total",
			Help:      "Total number of encode requests",
		},
		[]string{"model", "status"},
	)

	EncoderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "listingsearch",
			Name:      "encoder_request_duration_seconds",
			Help:      "Encode request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EncoderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingsearch",
			Name:      "encoder_tokens_total",
			Help:      "Total encoder tokens consumed",
		},
		[]string{"model", "type"},
	)

	EncoderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingsearch",
			Name:      "encoder_errors_total",
			Help:      "Total encoder errors",
		},
		[]string{"model", "error_type"},
	)

	EncoderCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingsearch",
			Name:      "encoder_cache_total",
			Help:      "Encode cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var encoderMetricsRegistered bool

// RegisterEncoderMetrics registers Prometheus encoder metrics. Must be called once from main.
func RegisterEncoderMetrics() {
	if encoderMetricsRegistered {
		return
	}
	prometheus.MustRegister(EncoderRequestsTotal)
	prometheus.MustRegister(EncoderRequestDuration)
	prometheus.MustRegister(EncoderTokensTotal)
	prometheus.MustRegister(EncoderErrorsTotal)
	prometheus.MustRegister(EncoderCacheTotal)
	encoderMetricsRegistered = true
}
