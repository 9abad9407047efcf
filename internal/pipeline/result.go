package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Outcome is the terminal state of a single step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// StepResult is produced once per step.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Detail   string
	Err      error
	Duration time.Duration
}

// Report aggregates the results of one run.
type Report struct {
	Workflow string
	Results  []StepResult
	Failed   *StepResult
	Err      error
	Duration time.Duration
}

// Succeeded reports whether every executed step succeeded or was skipped.
func (r Report) Succeeded() bool {
	return r.Failed == nil && r.Err == nil
}

// Count returns how many results had outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// StepError attributes a failure to the step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func wrapStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return "skipped: " + e.reason
}

// Skipped lets a running step declare at run time that it did not apply,
// e.g. a test step when no interpreter is installed.
func Skipped(reason string) error {
	return &skipError{reason: reason}
}

// IsSkipped reports whether err came from Skipped and returns its reason.
func IsSkipped(err error) (string, bool) {
	var skip *skipError
	if errors.As(err, &skip) {
		return skip.reason, true
	}
	return "", false
}
