// Package metrics provides Prometheus instrumentation for downpay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for quote evaluation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Evaluation outcomes: "ok" or the error class
	EvaluationOutcome *prometheus.CounterVec

	// Single quote evaluation latency
	EvaluateLatency prometheus.Histogram

	// Rule tables compiled, by whether they carry a fallback rule
	TablesCompiled *prometheus.CounterVec

	// Policies priced by the fallback rule
	FallbackPolicies prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EvaluationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "downpay_evaluations_total",
			Help: "Total quote evaluations by outcome",
		}, []string{"outcome"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "downpay_evaluate_duration_seconds",
			Help:    "Duration of a single quote evaluation",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),

		TablesCompiled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "downpay_rule_tables_compiled_total",
			Help: "Rule tables compiled, by presence of an unconditional fallback rule",
		}, []string{"fallback"}),

		FallbackPolicies: factory.NewCounter(prometheus.CounterOpts{
			Name: "downpay_fallback_policies_total",
			Help: "Policies priced by a table's unconditional rule",
		}),
	}
}

// ObserveEvaluation records the outcome and latency of one evaluation.
func (m *Metrics) ObserveEvaluation(outcome string, d time.Duration) {
	if m != nil {
		m.EvaluationOutcome.WithLabelValues(outcome).Inc()
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementTableCompiled records a compiled rule table.
func (m *Metrics) IncrementTableCompiled(hasFallback bool) {
	if m == nil {
		return
	}
	label := "false"
	if hasFallback {
		label = "true"
	}
	m.TablesCompiled.WithLabelValues(label).Inc()
}

// AddFallbackPolicies counts policies priced by a fallback rule.
func (m *Metrics) AddFallbackPolicies(n int) {
	if m != nil && n > 0 {
		m.FallbackPolicies.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
