// Package metrics holds the prometheus collectors for the edit pipeline and
// its outbound transports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nanoedit"

// Collector records pipeline outcomes and transport attempts. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	pipelineResults  *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	transportAttempt *prometheus.CounterVec
	fallbackStubs    prometheus.Counter
}

// NewCollector registers every collector on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		pipelineResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edit_pipeline_results_total",
				Help:      "Edit pipeline outcomes by operation.",
			},
			[]string{"operation", "outcome"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "edit_pipeline_duration_seconds",
				Help:      "Wall time of one edit pipeline pass.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"operation"},
		),
		transportAttempt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edit_transport_attempts_total",
				Help:      "Outbound backend attempts by target and outcome.",
			},
			[]string{"target", "outcome"},
		),
		fallbackStubs: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edit_fallback_stubs_total",
				Help:      "Responses degraded to the placeholder asset.",
			},
		),
	}
}

// Registry exposes the registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObservePipeline records one pipeline pass.
func (c *Collector) ObservePipeline(operation, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.pipelineResults.WithLabelValues(operation, outcome).Inc()
	c.pipelineDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveAttempt records one transport attempt.
func (c *Collector) ObserveAttempt(target, outcome string) {
	if c == nil {
		return
	}
	c.transportAttempt.WithLabelValues(target, outcome).Inc()
}

// ObserveStub records a degraded response.
func (c *Collector) ObserveStub() {
	if c == nil {
		return
	}
	c.fallbackStubs.Inc()
}

// PipelineCount returns the counter for tests and diagnostics.
func (c *Collector) PipelineCount(operation, outcome string) prometheus.Counter {
	return c.pipelineResults.WithLabelValues(operation, outcome)
}

// AttemptCount returns the counter for tests and diagnostics.
func (c *Collector) AttemptCount(target, outcome string) prometheus.Counter {
	return c.transportAttempt.WithLabelValues(target, outcome)
}

// StubCount returns the stub counter.
func (c *Collector) StubCount() prometheus.Counter {
	return c.fallbackStubs
}
