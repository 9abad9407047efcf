package notify

import (
	"context"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
)

// Notifier delivers run summaries to external systems.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// StepLine is one step outcome in a summary.
type StepLine struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Summary describes a finished workflow run.
type Summary struct {
	Project    string        `json:"project"`
	Workflow   string        `json:"workflow"`
	Succeeded  bool          `json:"succeeded"`
	FailedStep string        `json:"failed_step,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Steps      []StepLine    `json:"steps"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// SummaryFromReport flattens a sequencer report.
func SummaryFromReport(project string, report pipeline.Report, finishedAt time.Time) Summary {
	summary := Summary{
		Project:    project,
		Workflow:   report.Workflow,
		Succeeded:  report.Succeeded(),
		Steps:      make([]StepLine, 0, len(report.Results)),
		Duration:   report.Duration,
		FinishedAt: finishedAt.UTC(),
	}
	for _, result := range report.Results {
		summary.Steps = append(summary.Steps, StepLine{
			Name:    result.Name,
			Outcome: string(result.Outcome),
			Detail:  result.Detail,
		})
	}
	if report.Failed != nil {
		summary.FailedStep = report.Failed.Name
		summary.Detail = report.Failed.Detail
	}
	if report.Err != nil {
		summary.Kind = string(failure.KindOf(report.Err))
	}
	return summary
}

// Status renders "succeeded" or "failed".
func (s Summary) Status() string {
	if s.Succeeded {
		return "succeeded"
	}
	return "failed"
}
