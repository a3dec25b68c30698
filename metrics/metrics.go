// Package metrics counts the work done by a batch run and can write it out
// in the node exporter textfile format. A nil *Metrics accepts every call
// and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Case outcomes.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Metrics struct {
	registry      *prometheus.Registry
	cases         *prometheus.CounterVec
	slicesWritten *prometheus.CounterVec
	caseDuration  *prometheus.HistogramVec
}

// New registers the batch metrics on a fresh registry.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the batch metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: reg,
		cases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbct_cases_total",
				Help: "Cases processed, by command and outcome.",
			},
			[]string{"command", "status"},
		),
		slicesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbct_slices_written_total",
				Help: "PNG slices written, by command.",
			},
			[]string{"command"},
		),
		caseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cbct_case_duration_seconds",
				Help:    "Wall time spent per case.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"command"},
		),
	}

	for _, c := range []prometheus.Collector{m.cases, m.slicesWritten, m.caseDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CaseDone records one finished case.
func (m *Metrics) CaseDone(command string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.cases.WithLabelValues(command, status).Inc()
	m.caseDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// SliceWritten records one written image.
func (m *Metrics) SliceWritten(command string) {
	if m == nil {
		return
	}

	m.slicesWritten.WithLabelValues(command).Inc()
}

// Registry exposes the underlying registry, nil for a nil receiver.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// WriteTextfile atomically writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	return prometheus.WriteToTextfile(path, m.registry)
}
