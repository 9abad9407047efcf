package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps Prometheus collectors for pipeline runs. It implements
// pipeline.Recorder.
type Metrics struct {
	registry            *prometheus.Registry
	stepDurationSeconds *prometheus.HistogramVec
	stepsTotal          *prometheus.CounterVec
	runsTotal           *prometheus.CounterVec
	runDurationSeconds  *prometheus.GaugeVec
	lastSuccessfulRun   *prometheus.GaugeVec
	now                 func() time.Time
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wolfpy_pipeline_step_duration_seconds",
			Help:    "Duration of pipeline steps in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"workflow", "step"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wolfpy_pipeline_steps_total",
			Help: "Total pipeline steps by workflow, step and outcome.",
		}, []string{"workflow", "step", "outcome"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wolfpy_pipeline_runs_total",
			Help: "Total workflow runs by result and failure kind.",
		}, []string{"workflow", "result", "kind"}),
		runDurationSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wolfpy_pipeline_run_duration_seconds",
			Help: "Duration of the most recent workflow run in seconds.",
		}, []string{"workflow"}),
		lastSuccessfulRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wolfpy_pipeline_last_successful_run_timestamp",
			Help: "Unix timestamp of the last successful workflow run.",
		}, []string{"workflow"}),
		now: time.Now,
	}

	registry.MustRegister(
		m.stepDurationSeconds,
		m.stepsTotal,
		m.runsTotal,
		m.runDurationSeconds,
		m.lastSuccessfulRun,
	)

	return m
}

// ObserveStep implements pipeline.Recorder.
func (m *Metrics) ObserveStep(workflow string, result pipeline.StepResult) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(workflow, result.Name, string(result.Outcome)).Inc()
	if result.Outcome != pipeline.OutcomeSkipped {
		m.stepDurationSeconds.WithLabelValues(workflow, result.Name).Observe(result.Duration.Seconds())
	}
}

// ObserveRun implements pipeline.Recorder.
func (m *Metrics) ObserveRun(report pipeline.Report) {
	if m == nil {
		return
	}
	result := "success"
	kind := ""
	if !report.Succeeded() {
		result = "failure"
		kind = string(failure.KindOf(report.Err))
	}
	m.runsTotal.WithLabelValues(report.Workflow, result, kind).Inc()
	m.runDurationSeconds.WithLabelValues(report.Workflow).Set(report.Duration.Seconds())
	if report.Succeeded() {
		m.lastSuccessfulRun.WithLabelValues(report.Workflow).Set(float64(m.now().Unix()))
	}
}

// WriteTextfile exports the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
