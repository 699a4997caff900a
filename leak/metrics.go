package leak

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/guileen/dbtrack/tracker"
)

const metricsNamespace = "dbtrack"

// Metrics is a prometheus.Collector fed by tracker lifecycle events. Set it
// as tracker.Options.Observer.
type Metrics struct {
	tracked  *prometheus.CounterVec
	closed   *prometheus.CounterVec
	failures *prometheus.CounterVec
	active   *prometheus.GaugeVec
	leaks    *prometheus.GaugeVec
}

var (
	_ tracker.Observer     = (*Metrics)(nil)
	_ prometheus.Collector = (*Metrics)(nil)
)

// NewMetrics returns a new Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		tracked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tracked_total",
				Help:      "The number of resources that have been tracked.",
			}, []string{"kind"},
		),
		closed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "closed_total",
				Help:      "The number of tracked resources that have been closed or released.",
			}, []string{"kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "close_failures_total",
				Help:      "The number of closes that reported at least one error.",
			}, []string{"kind"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active",
				Help:      "The number of tracked resources currently open.",
			}, []string{"kind"},
		),
		leaks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "leaked",
				Help:      "The number of resources flagged as leaked by the last check.",
			}, []string{"kind"},
		),
	}
}

// Tracked is part of the tracker.Observer interface.
func (m *Metrics) Tracked(kind tracker.Kind) {
	m.tracked.WithLabelValues(kind.String()).Inc()
	m.active.WithLabelValues(kind.String()).Inc()
}

// Closed is part of the tracker.Observer interface.
func (m *Metrics) Closed(kind tracker.Kind, err error) {
	m.closed.WithLabelValues(kind.String()).Inc()
	m.active.WithLabelValues(kind.String()).Dec()
	if err != nil {
		m.failures.WithLabelValues(kind.String()).Inc()
	}
}

// SetLeaks records the per-kind leak counts of report.
func (m *Metrics) SetLeaks(report *Report) {
	m.leaks.Reset()
	for _, leak := range report.Leaks {
		m.leaks.WithLabelValues(leak.ResourceType.String()).Inc()
	}
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.tracked.Describe(ch)
	m.closed.Describe(ch)
	m.failures.Describe(ch)
	m.active.Describe(ch)
	m.leaks.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.tracked.Collect(ch)
	m.closed.Collect(ch)
	m.failures.Collect(ch)
	m.active.Collect(ch)
	m.leaks.Collect(ch)
}
