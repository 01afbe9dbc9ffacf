// Package metrics exposes the prometheus counters/histograms the proxy's
// /metrics endpoint serves: provider latency, decision outcomes, and
// simulation success rate (§4.8 step 7's "each scan records its own
// timing under keys provider.*, proxy.scan, proxy.render,
// proxy.queueWait, proxy.total").
//
// Grounded on the teacher's internal/escrow/metrics.go: a struct of
// promauto-registered vectors plus a handful of Record* methods, adapted
// from the escrow/tri-factor domain to assay's provider/scan/decision
// domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every prometheus collector assay registers.
type Metrics struct {
	ProviderLatency   *prometheus.HistogramVec
	ProviderOutcome   *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	QueueWait         prometheus.Histogram
	DecisionTotal     *prometheus.CounterVec
	SimulationTotal   *prometheus.CounterVec
	SimulationLatency prometheus.Histogram
	RecordingErrors   prometheus.Counter
}

// New registers a fresh set of collectors against the default registry.
// Tests that construct multiple Metrics instances should use NewWithRegisterer
// against an isolated prometheus.Registry to avoid duplicate-registration
// panics.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers against the given registerer, so tests can
// pass a fresh prometheus.NewRegistry() instead of the process-global one.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assay_provider_latency_seconds",
				Help:    "Latency of a single provider adapter call.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
			},
			[]string{"provider"},
		),
		ProviderOutcome: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assay_provider_outcome_total",
				Help: "Outcome of provider adapter calls (ok, timeout, error, skipped).",
			},
			[]string{"provider", "outcome"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assay_scan_duration_seconds",
				Help:    "Duration of a scan phase (proxy.queueWait, proxy.scan, proxy.total).",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		QueueWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assay_proxy_queue_wait_seconds",
				Help:    "Time an intercepted entry waited on the per-instance scan queue.",
				Buckets: prometheus.DefBuckets,
			},
		),
		DecisionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assay_decision_total",
				Help: "Decisions made by the policy engine (forward, prompt, block).",
			},
			[]string{"decision"},
		),
		SimulationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assay_simulation_total",
				Help: "Fork simulations run, by success/failure.",
			},
			[]string{"result"},
		),
		SimulationLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assay_simulation_latency_seconds",
				Help:    "Latency of a fork simulation run.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
		),
		RecordingErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assay_recording_errors_total",
				Help: "Failures writing a recording bundle to disk.",
			},
		),
	}
}

// RecordProvider records one provider call's latency and outcome.
func (m *Metrics) RecordProvider(provider, outcome string, seconds float64) {
	m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
	m.ProviderOutcome.WithLabelValues(provider, outcome).Inc()
}

// RecordScanPhase records one named scan phase's duration.
func (m *Metrics) RecordScanPhase(phase string, seconds float64) {
	m.ScanDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordDecision records a policy decision outcome.
func (m *Metrics) RecordDecision(decision string) {
	m.DecisionTotal.WithLabelValues(decision).Inc()
}

// RecordSimulation records a fork simulation's result and latency.
func (m *Metrics) RecordSimulation(success bool, seconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.SimulationTotal.WithLabelValues(result).Inc()
	m.SimulationLatency.Observe(seconds)
}
