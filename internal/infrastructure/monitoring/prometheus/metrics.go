// Package prometheus collects the battery's operational metrics: LP solves
// by outcome, solve latency, per-check wall time, and sampled flux vectors.
// Metrics register on a private registry so embedding applications keep
// control of their default registry.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the battery's collectors.  The zero value is not usable;
// construct with New.
type Metrics struct {
	registry *prometheus.Registry

	solves   *prometheus.CounterVec
	solveDur prometheus.Histogram
	checkDur *prometheus.HistogramVec
	samples  prometheus.Counter
}

// New creates and registers the battery collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macaw",
			Subsystem: "solver",
			Name:      "lp_solves_total",
			Help:      "LP solves by outcome code (OK, SOLVER_001 infeasible, ...).",
		}, []string{"status"}),
		solveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "macaw",
			Subsystem: "solver",
			Name:      "lp_solve_seconds",
			Help:      "Wall time of individual LP solves.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 12),
		}),
		checkDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "macaw",
			Subsystem: "battery",
			Name:      "check_seconds",
			Help:      "Wall time of each consistency check.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"check"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "macaw",
			Subsystem: "solver",
			Name:      "flux_samples_total",
			Help:      "Flux vectors drawn by the sampler.",
		}),
	}
	m.registry.MustRegister(m.solves, m.solveDur, m.checkDur, m.samples)
	return m
}

// ObserveSolve records one LP solve; status is the error code or "OK".
// Satisfies the solver.Metrics interface.
func (m *Metrics) ObserveSolve(status string, elapsed time.Duration) {
	m.solves.WithLabelValues(status).Inc()
	m.solveDur.Observe(elapsed.Seconds())
}

// ObserveCheck records the wall time of one consistency check.
func (m *Metrics) ObserveCheck(check string, elapsed time.Duration) {
	m.checkDur.WithLabelValues(check).Observe(elapsed.Seconds())
}

// AddSamples counts drawn flux vectors.
func (m *Metrics) AddSamples(n int) {
	m.samples.Add(float64(n))
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry for embedding applications that
// want to attach their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
