// Package metrics records executor operations in Prometheus collectors.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/executor"
)

const namespace = "wasm_executor"

var _ executor.Observer = (*Observer)(nil)

// Observer implements executor.Observer.
type Observer struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	state      prometheus.Gauge
}

// New creates an Observer with its own registry.
func New() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Executor operations by outcome status.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Executor operation latency.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}, []string{"op"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current lifecycle state (0 = Created ... 5 = Finished).",
		}),
	}
	o.registry.MustRegister(o.operations, o.duration, o.state)
	return o
}

// Observe records one operation.
func (o *Observer) Observe(op executor.Op, state executor.State, err error, elapsed time.Duration) {
	status := errors.CodeOf(err).String()
	o.operations.WithLabelValues(string(op), status).Inc()
	o.duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	o.state.Set(float64(state))
}

// Registry returns the registry holding the collectors.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Operations returns the operation counter, labelled by op and status.
func (o *Observer) Operations() *prometheus.CounterVec {
	return o.operations
}

// State returns the lifecycle state gauge.
func (o *Observer) State() prometheus.Gauge {
	return o.state
}

// WriteText writes all collected metrics in the Prometheus text format.
func (o *Observer) WriteText(w io.Writer) error {
	families, err := o.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
