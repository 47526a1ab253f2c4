// Package metrics exposes pipeline step timings and outcomes to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "viber_agent"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	stepSeconds  *prometheus.HistogramVec
	operations   *prometheus.CounterVec
	captures     *prometheus.CounterVec
	recognitions *prometheus.CounterVec
	inflight     prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		stepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent in each pipeline state.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 8, 14, 21},
		}, []string{"operation", "state"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Finished operations by outcome code (ok for success).",
		}, []string{"operation", "outcome"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Successful captures by backend.",
		}, []string{"backend"}),
		recognitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognitions_total",
			Help:      "Name recognitions by result (accepted, rejected, failed).",
		}, []string{"result"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Operations currently running.",
		}),
	}
	reg.MustRegister(m.stepSeconds, m.operations, m.captures, m.recognitions, m.inflight)
	return m
}

func (m *Metrics) ObserveStep(operation, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepSeconds.WithLabelValues(operation, state).Observe(d.Seconds())
}

func (m *Metrics) Outcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Capture(backend string) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(backend).Inc()
}

func (m *Metrics) Recognition(result string) {
	if m == nil {
		return
	}
	m.recognitions.WithLabelValues(result).Inc()
}

// Track marks an operation as running until the returned func is called.
func (m *Metrics) Track() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}
