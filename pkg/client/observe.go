package client

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// observer centralizes logging and metrics for client operations. Both
// sinks are optional; a zero observer is silent.
type observer struct {
	log     *slog.Logger
	metrics *clientMetrics
}

func newObserver(log *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{log: log}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.log == nil {
		return
	}
	if err != nil {
		o.log.Warn("listingsearch call failed", "operation", op, "elapsed", elapsed, "error", err)
		return
	}
	o.log.Debug("listingsearch call", "operation", op, "elapsed", elapsed)
}

type clientMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listingsearch",
		Subsystem: "client",
		Name:      "operations_total",
		Help:      "Client operations by name and status.",
	}, []string{"operation", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "listingsearch",
		Subsystem: "client",
		Name:      "operation_duration_seconds",
		Help:      "Client operation latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	var err error
	if operations, err = registerOrReuse(reg, operations); err != nil {
		return nil, err
	}
	if duration, err = registerOrReuse(reg, duration); err != nil {
		return nil, err
	}
	return &clientMetrics{operations: operations, duration: duration}, nil
}

// registerOrReuse tolerates two clients sharing one registry: a collector
// that is already registered is picked up instead of failing.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}
