package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()
	m.now = func() time.Time { return time.Unix(100, 0) }

	m.ObserveStep("build", pipeline.StepResult{Name: "clean", Outcome: pipeline.OutcomeSuccess, Duration: time.Second})
	m.ObserveStep("build", pipeline.StepResult{Name: "test", Outcome: pipeline.OutcomeSkipped})
	m.ObserveRun(pipeline.Report{Workflow: "build", Duration: 2 * time.Second})

	denied := &pipeline.StepError{Step: "upload", Err: failure.ErrConfirmationDenied}
	m.ObserveRun(pipeline.Report{Workflow: "publish-production", Err: denied, Failed: &pipeline.StepResult{Name: "upload"}})

	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues("build", "clean", "success")); got != 1 {
		t.Fatalf("expected clean success 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues("build", "test", "skipped")); got != 1 {
		t.Fatalf("expected test skipped 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("build", "success", "")); got != 1 {
		t.Fatalf("expected build success run 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("publish-production", "failure", "CONFIRMATION_DENIED")); got != 1 {
		t.Fatalf("expected denied run 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.runDurationSeconds.WithLabelValues("build")); got != 2 {
		t.Fatalf("expected run duration 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccessfulRun.WithLabelValues("build")); got != 100 {
		t.Fatalf("expected last successful run 100, got %v", got)
	}
	if count := testutil.CollectAndCount(m.stepDurationSeconds); count != 1 {
		t.Fatalf("expected one duration series (skips excluded), got %d", count)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRun(pipeline.Report{Workflow: "clean", Err: errors.New("boom"), Failed: &pipeline.StepResult{Name: "remove"}})

	path := filepath.Join(t.TempDir(), "textfile", "wolfpy.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `wolfpy_pipeline_runs_total{kind="UNKNOWN",result="failure",workflow="clean"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", data)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStep("build", pipeline.StepResult{})
	m.ObserveRun(pipeline.Report{})
	if err := m.WriteTextfile("/nonexistent/metrics.prom"); err != nil {
		t.Fatalf("nil metrics should not write: %v", err)
	}
}
