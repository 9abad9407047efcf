// Package failure names the error conditions a pipeline step can end in.
// Kinds are strings so they read naturally in logs and notification payloads.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a step failed.
type Kind string

const (
	// KindExecutableNotFound means a wrapped tool is not installed.
	KindExecutableNotFound Kind = "EXECUTABLE_NOT_FOUND"

	// KindProcessFailed means a wrapped tool exited non-zero.
	KindProcessFailed Kind = "PROCESS_FAILED"

	// KindValidationFailed means a required project file or field is missing.
	KindValidationFailed Kind = "VALIDATION_FAILED"

	// KindConfirmationDenied means the operator declined an irreversible action.
	KindConfirmationDenied Kind = "CONFIRMATION_DENIED"

	// KindInconsistentState means one of a pair of writes landed and the other did not.
	KindInconsistentState Kind = "INCONSISTENT_STATE"

	// KindInvalidConfig means a caller supplied a value outside the accepted set.
	KindInvalidConfig Kind = "INVALID_CONFIGURATION"

	// KindInterrupted means the operator cancelled a running step.
	KindInterrupted Kind = "INTERRUPTED"

	// KindUnknown covers everything else.
	KindUnknown Kind = "UNKNOWN"
)

// ErrConfirmationDenied is returned when the confirmation gate answers no.
var ErrConfirmationDenied = errors.New("confirmation denied")

// ErrInterrupted is returned when a running step is cancelled by the operator.
var ErrInterrupted = errors.New("interrupted")

// Kinded is implemented by errors that know their own classification.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf classifies err. Nil errors have no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	switch {
	case errors.Is(err, ErrConfirmationDenied):
		return KindConfirmationDenied
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return KindInterrupted
	}
	return KindUnknown
}

// ValidationError lists every missing file or field found by a validation step.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return fmt.Sprintf("%d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Kind implements Kinded.
func (e *ValidationError) Kind() Kind { return KindValidationFailed }

// Validation builds a ValidationError from one or more problems.
func Validation(problems ...string) error {
	return &ValidationError{Problems: problems}
}

// ConfigError reports a rejected configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Kind implements Kinded.
func (e *ConfigError) Kind() Kind { return KindInvalidConfig }

// InconsistentStateError reports a paired write where the first half landed.
// Written lists the files already rewritten, Pending the one that was not.
type InconsistentStateError struct {
	Written []string
	Pending string
	Err     error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent state: %s updated but %s was not (reconcile manually): %v",
		strings.Join(e.Written, ", "), e.Pending, e.Err)
}

func (e *InconsistentStateError) Unwrap() error { return e.Err }

// Kind implements Kinded.
func (e *InconsistentStateError) Kind() Kind { return KindInconsistentState }
