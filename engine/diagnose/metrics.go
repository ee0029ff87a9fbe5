package diagnose

import (
	"time"

	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
)

const (
	metricRequests = "wessley_diagnose_requests_total"
	metricFallback = "wessley_diagnose_fallback_total"
	metricStage    = "wessley_diagnose_stage_duration_seconds"
	metricEvidence = "wessley_diagnose_evidence_returned"
	metricInFlight = "wessley_diagnose_in_flight"
)

var evidenceBuckets = []float64{0, 1, 2, 3, 4, 5, 10}

// engineMetrics is a nil-safe wrapper around the registry.
type engineMetrics struct {
	reg *metrics.Registry
}

func newEngineMetrics(reg *metrics.Registry) *engineMetrics {
	return &engineMetrics{reg: reg}
}

func (m *engineMetrics) outcome(outcome string) {
	if m.reg == nil {
		return
	}
	m.reg.Counter(metrics.WithLabels(metricRequests, "outcome", outcome), "Diagnosis requests by outcome.").Inc()
}

func (m *engineMetrics) fallback(reason string) {
	if m.reg == nil {
		return
	}
	m.reg.Counter(metrics.WithLabels(metricFallback, "reason", reason), "Fallback reports by reason.").Inc()
}

func (m *engineMetrics) stage(s Stage, d time.Duration) {
	if m.reg == nil {
		return
	}
	m.reg.Histogram(metrics.WithLabels(metricStage, "stage", string(s)), "Time spent per engine stage.", nil).Observe(d.Seconds())
}

func (m *engineMetrics) evidence(n int) {
	if m.reg == nil {
		return
	}
	m.reg.Histogram(metricEvidence, "Evidence matches returned per request.", evidenceBuckets).Observe(float64(n))
}

// track counts a request as in flight until the returned func is called.
func (m *engineMetrics) track() func() {
	if m.reg == nil {
		return func() {}
	}
	g := m.reg.Gauge(metricInFlight, "Diagnoses currently running.")
	g.Inc()
	return g.Dec
}
