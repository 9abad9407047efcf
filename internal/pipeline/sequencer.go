package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/rs/zerolog"
)

// Gate asks the operator before irreversible steps.
type Gate interface {
	Confirm(prompt string) (bool, error)
}

// Reporter receives progress as steps start and finish.
type Reporter interface {
	StepStarted(workflow, step string)
	StepFinished(workflow string, result StepResult)
}

// Recorder receives per-step and per-run outcomes for metrics.
type Recorder interface {
	ObserveStep(workflow string, result StepResult)
	ObserveRun(report Report)
}

// Sequencer executes plans step by step. It never retries and never rolls back.
type Sequencer struct {
	logger   zerolog.Logger
	gate     Gate
	reporter Reporter
	recorder Recorder
	now      func() time.Time
}

// Option customizes sequencer behavior.
type Option func(*Sequencer)

// WithGate sets the confirmation gate. Without a gate every confirmation is denied.
func WithGate(gate Gate) Option {
	return func(s *Sequencer) {
		s.gate = gate
	}
}

// WithReporter sets the progress reporter.
func WithReporter(reporter Reporter) Option {
	return func(s *Sequencer) {
		s.reporter = reporter
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(s *Sequencer) {
		s.recorder = recorder
	}
}

// WithClock overrides the clock used for durations.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Sequencer.
func New(logger zerolog.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes plan in order. The first failing or declined step aborts the
// rest of the plan and is returned as a *StepError.
func (s *Sequencer) Run(ctx context.Context, plan Plan) (Report, error) {
	start := s.now()
	report := Report{Workflow: plan.Name()}
	logger := s.logger.With().Str("workflow", plan.Name()).Logger()

	logger.Debug().Int("steps", plan.Len()).Msg("workflow started")

	for _, step := range plan.steps {
		result := s.runStep(ctx, plan.Name(), step)
		report.Results = append(report.Results, result)

		if s.recorder != nil {
			s.recorder.ObserveStep(plan.Name(), result)
		}

		event := logger.Debug()
		if result.Outcome == OutcomeFailure {
			event = logger.Error().Err(result.Err)
		}
		event.Str("step", result.Name).
			Str("outcome", string(result.Outcome)).
			Dur("duration", result.Duration).
			Msg("step finished")

		if result.Outcome == OutcomeFailure {
			failed := report.Results[len(report.Results)-1]
			report.Failed = &failed
			report.Err = wrapStep(step.Name, result.Err)
			break
		}
	}

	report.Duration = s.now().Sub(start)
	if s.recorder != nil {
		s.recorder.ObserveRun(report)
	}

	if report.Err != nil {
		logger.Error().
			Str("step", report.Failed.Name).
			Str("kind", string(failure.KindOf(report.Err))).
			Msg("workflow failed")
		return report, report.Err
	}
	logger.Info().
		Int("succeeded", report.Count(OutcomeSuccess)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Dur("duration", report.Duration).
		Msg("workflow completed")
	return report, nil
}

func (s *Sequencer) runStep(ctx context.Context, workflow string, step Step) StepResult {
	started := s.now()
	finish := func(outcome Outcome, detail string, err error) StepResult {
		result := StepResult{
			Name:     step.Name,
			Outcome:  outcome,
			Detail:   detail,
			Err:      err,
			Duration: s.now().Sub(started),
		}
		if s.reporter != nil {
			s.reporter.StepFinished(workflow, result)
		}
		return result
	}

	if s.reporter != nil {
		s.reporter.StepStarted(workflow, step.Name)
	}

	if err := ctx.Err(); err != nil {
		return finish(OutcomeFailure, "interrupted before start", fmt.Errorf("%w: %v", failure.ErrInterrupted, err))
	}

	if step.Skip {
		return finish(OutcomeSkipped, step.SkipReason, nil)
	}

	if step.Confirm != "" {
		if err := s.confirm(step.Confirm); err != nil {
			return finish(OutcomeFailure, err.Error(), err)
		}
	}

	err := step.Run(ctx)
	if err == nil {
		return finish(OutcomeSuccess, "", nil)
	}
	if reason, ok := IsSkipped(err); ok {
		return finish(OutcomeSkipped, reason, nil)
	}
	return finish(OutcomeFailure, Diagnostic(err), err)
}

func (s *Sequencer) confirm(prompt string) error {
	if s.gate == nil {
		return failure.ErrConfirmationDenied
	}
	ok, err := s.gate.Confirm(prompt)
	if err != nil {
		return fmt.Errorf("confirmation: %w", err)
	}
	if !ok {
		return failure.ErrConfirmationDenied
	}
	return nil
}

// Diagnostic is the text shown to the operator for a failed step. Process
// failures show the tool's own stderr when it has any.
func Diagnostic(err error) string {
	var detailed interface{ Diagnostic() string }
	if errors.As(err, &detailed) {
		if d := detailed.Diagnostic(); d != "" {
			return d
		}
	}
	return err.Error()
}
