package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the validation counter.
const (
	OutcomeValidated   = "validated"
	OutcomePassthrough = "passthrough"
)

// Metrics holds the counters recorded for one extraction run. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	linesScanned  prometheus.Counter
	fragments     prometheus.Counter
	validation    *prometheus.CounterVec
	outputBytes   prometheus.Gauge
	stageDuration *prometheus.HistogramVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		linesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracejson_lines_scanned_total",
			Help: "Input lines scanned for the payload marker.",
		}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracejson_fragments_extracted_total",
			Help: "Tagged lines whose fragment was appended to the payload.",
		}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracejson_validation_total",
			Help: "Validation attempts by outcome.",
		}, []string{"outcome"}),
		outputBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracejson_output_bytes",
			Help: "Size of the last written output artifact.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracejson_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
	}

	registry.MustRegister(
		m.linesScanned,
		m.fragments,
		m.validation,
		m.outputBytes,
		m.stageDuration,
	)

	for _, outcome := range []string{OutcomeValidated, OutcomePassthrough} {
		m.validation.WithLabelValues(outcome).Add(0)
	}
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveExtraction adds the scanned line and fragment counts.
func (m *Metrics) ObserveExtraction(lines int, fragments int) {
	if m == nil {
		return
	}
	m.linesScanned.Add(float64(lines))
	m.fragments.Add(float64(fragments))
}

// ObserveValidation counts one validation attempt under outcome.
func (m *Metrics) ObserveValidation(outcome string) {
	if m == nil {
		return
	}
	m.validation.WithLabelValues(outcome).Inc()
}

// SetOutputBytes records the size of the written artifact.
func (m *Metrics) SetOutputBytes(n int) {
	if m == nil {
		return
	}
	m.outputBytes.Set(float64(n))
}

// ObserveStage records the wall time of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
