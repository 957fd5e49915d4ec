// Package metrics exposes the verifier's own telemetry: probe volume, poll
// outcomes and latencies, token mint results and scenario verdicts. All
// metrics live on an instance-based registry, never the global one, so a
// run's metrics are garbage collected with its Harness.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Harness is the verifier's metric set. It satisfies the poller's Recorder
// interface.
type Harness struct {
	registry *prometheus.Registry

	pollAttempts     prometheus.Counter
	pollOutcomes     *prometheus.CounterVec
	pollDuration     prometheus.Histogram
	mintAttempts     *prometheus.CounterVec
	scenarioOutcomes *prometheus.CounterVec
	requestsSent     *prometheus.CounterVec
}

// NewHarness creates a Harness with its own registry.
func NewHarness() *Harness {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Harness{
		registry: registry,
		pollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifier_poll_attempts_total",
			Help: "Total convergence probe invocations.",
		}),
		pollOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifier_poll_outcomes_total",
			Help: "Finished polls by outcome (success, timeout, fatal, canceled).",
		}, []string{"outcome"}),
		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "verifier_poll_duration_seconds",
			Help:    "Wall-clock duration of finished polls.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		mintAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifier_token_mint_attempts_total",
			Help: "Token mint attempts by outcome (success, failure, denied).",
		}, []string{"outcome"}),
		scenarioOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifier_scenario_outcomes_total",
			Help: "Recorded scenario verdicts by status (pass, fail, warn, info).",
		}, []string{"status"}),
		requestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifier_gateway_requests_total",
			Help: "Requests sent to the gateway by HTTP status class.",
		}, []string{"class"}),
	}
}

// Registry returns the harness registry for serving or gathering.
func (h *Harness) Registry() *prometheus.Registry {
	return h.registry
}

// PollAttempt counts one probe invocation.
func (h *Harness) PollAttempt() {
	h.pollAttempts.Inc()
}

// PollOutcome counts a finished poll and observes its duration.
func (h *Harness) PollOutcome(outcome string, elapsed time.Duration) {
	h.pollOutcomes.WithLabelValues(outcome).Inc()
	h.pollDuration.Observe(elapsed.Seconds())
}

// MintAttempt counts one token mint attempt.
func (h *Harness) MintAttempt(outcome string) {
	h.mintAttempts.WithLabelValues(outcome).Inc()
}

// ScenarioOutcome counts one recorded scenario verdict.
func (h *Harness) ScenarioOutcome(status string) {
	h.scenarioOutcomes.WithLabelValues(status).Inc()
}

// RequestSent counts one gateway request by status class ("2xx", "4xx", ...).
func (h *Harness) RequestSent(status int) {
	class := "other"
	switch {
	case status >= 200 && status < 300:
		class = "2xx"
	case status >= 300 && status < 400:
		class = "3xx"
	case status >= 400 && status < 500:
		class = "4xx"
	case status >= 500 && status < 600:
		class = "5xx"
	}
	h.requestsSent.WithLabelValues(class).Inc()
}
