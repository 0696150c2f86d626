package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for suite execution
type Metrics struct {
	registry     *prometheus.Registry
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Probes       *prometheus.CounterVec
	Healing      *prometheus.CounterVec
	Diagnoses    *prometheus.CounterVec
}

// New constructs a registry with the orchestration collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()

	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apihealer_steps_total",
		Help: "Dispatched steps by method and outcome",
	}, []string{"method", "outcome"})

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apihealer_step_duration_seconds",
		Help:    "Round-trip time of dispatched steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	probes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apihealer_probes_total",
		Help: "Producer probes issued during context resolution by result",
	}, []string{"result"})

	healing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apihealer_healing_attempts_total",
		Help: "Automatic retries with a suggested body by result",
	}, []string{"result"})

	diagnoses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apihealer_diagnoses_total",
		Help: "Diagnosis verdicts by kind",
	}, []string{"kind"})

	reg.MustRegister(steps, durations, probes, healing, diagnoses)

	return &Metrics{
		registry:     reg,
		Steps:        steps,
		StepDuration: durations,
		Probes:       probes,
		Healing:      healing,
		Diagnoses:    diagnoses,
	}
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStep counts a dispatched step and observes its duration
func (m *Metrics) RecordStep(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	method = strings.ToUpper(orUnknown(method))
	m.Steps.WithLabelValues(method, orUnknown(outcome)).Inc()
	m.StepDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordProbe counts a producer probe
func (m *Metrics) RecordProbe(result string) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(orUnknown(result)).Inc()
}

// RecordHealing counts a healing retry
func (m *Metrics) RecordHealing(result string) {
	if m == nil {
		return
	}
	m.Healing.WithLabelValues(orUnknown(result)).Inc()
}

// RecordDiagnosis counts a diagnosis verdict, or "error" when the service failed
func (m *Metrics) RecordDiagnosis(kind string) {
	if m == nil {
		return
	}
	m.Diagnoses.WithLabelValues(orUnknown(kind)).Inc()
}

// WriteTextfile dumps the current values in the Prometheus text format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
