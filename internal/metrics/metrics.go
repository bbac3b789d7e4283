// Package metrics exposes traversal, synthesis and HTTP measurements to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

const namespace = "wayfarer"

var _ graph.Recorder = (*Metrics)(nil)

type Metrics struct {
	registry *prometheus.Registry

	traversals        *prometheus.CounterVec   // By outcome and reason
	traversalDuration *prometheus.HistogramVec // By outcome
	syntheses         *prometheus.CounterVec   // By status (success/timeout/failure)
	synthesisDuration prometheus.Histogram
	commands          *prometheus.CounterVec // By verb
}

// New creates the collectors on a private registry, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		traversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "traversals_total",
			Help:      "Total number of traversal requests by outcome",
		}, []string{"outcome", "reason"}),

		traversalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "traversal_duration_seconds",
			Help:      "Traversal duration in seconds, including any synthesis wait",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 45},
		}, []string{"outcome"}),

		syntheses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synthesis",
			Name:      "calls_total",
			Help:      "Total number of content synthesizer calls",
		}, []string{"status"}),

		synthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "synthesis",
			Name:      "duration_seconds",
			Help:      "Content synthesizer call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 45},
		}),

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Total number of player commands by verb",
		}, []string{"verb"}),
	}

	m.registry.MustRegister(
		m.traversals,
		m.traversalDuration,
		m.syntheses,
		m.synthesisDuration,
		m.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTraversal(outcome world.TraversalOutcome, elapsed time.Duration) {
	m.traversals.WithLabelValues(string(outcome.Kind), string(outcome.Reason)).Inc()
	m.traversalDuration.WithLabelValues(string(outcome.Kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSynthesis(elapsed time.Duration, err error) {
	status := "success"
	switch {
	case errors.Is(err, world.ErrTimeout):
		status = "timeout"
	case err != nil:
		status = "failure"
	}
	m.syntheses.WithLabelValues(status).Inc()
	m.synthesisDuration.Observe(elapsed.Seconds())
}

// ObserveCommand counts a player command by its verb.
func (m *Metrics) ObserveCommand(verb string) {
	m.commands.WithLabelValues(verb).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
