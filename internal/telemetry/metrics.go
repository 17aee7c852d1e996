// Package telemetry содержит prometheus-метрики конвейера.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики и гистограммы конвейера. Nil-приёмник допустим:
// компоненты могут работать без метрик (например, в тестах).
type Metrics struct {
	inspections        *prometheus.CounterVec
	matchOutcomes      *prometheus.CounterVec
	detectorFailures   *prometheus.CounterVec
	inspectionDuration prometheus.Histogram
	pipelineDuration   prometheus.Histogram
}

// New создаёт и регистрирует метрики в переданном регистре.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		inspections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "defect_pipeline_inspections_total",
			Help: "Inspection verdicts by result (OK/NG).",
		}, []string{"result"}),
		matchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "defect_pipeline_match_outcomes_total",
			Help: "Knowledge matching outcomes (DEFECT/OK/UNKNOWN).",
		}, []string{"outcome"}),
		detectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "defect_pipeline_detector_failures_total",
			Help: "Isolated detector failures by detector name.",
		}, []string{"detector"}),
		inspectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "defect_pipeline_inspection_duration_seconds",
			Help:    "Vision engine inspection latency.",
			Buckets: prometheus.DefBuckets,
		}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "defect_pipeline_duration_seconds",
			Help:    "End-to-end pipeline latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.inspections,
		m.matchOutcomes,
		m.detectorFailures,
		m.inspectionDuration,
		m.pipelineDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveInspection учитывает один вызов визуальной инспекции.
func (m *Metrics) ObserveInspection(result string, seconds float64) {
	if m == nil {
		return
	}
	m.inspections.WithLabelValues(result).Inc()
	m.inspectionDuration.Observe(seconds)
}

// ObserveMatch учитывает исход одного сопоставления.
func (m *Metrics) ObserveMatch(outcome string) {
	if m == nil {
		return
	}
	m.matchOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePipeline учитывает один сквозной вызов конвейера.
func (m *Metrics) ObservePipeline(seconds float64) {
	if m == nil {
		return
	}
	m.pipelineDuration.Observe(seconds)
}

// DetectorFailure учитывает изолированный сбой детектора.
func (m *Metrics) DetectorFailure(detector string) {
	if m == nil {
		return
	}
	m.detectorFailures.WithLabelValues(detector).Inc()
}
