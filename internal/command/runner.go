// Package command runs external tools as opaque processes and classifies how they ended.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/rs/zerolog"
)

// interruptGrace is how long a cancelled process gets to exit after SIGINT before it is killed.
const interruptGrace = 10 * time.Second

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string

	// Attach connects the process to the console: stdin is passed through and
	// output is mirrored while still being captured.
	Attach bool
}

// String renders the command line for logs and diagnostics.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds what a finished process produced.
type Result struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	Interrupted bool
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// NotFoundError reports that the named executable is not installed.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found; install %s first", e.Name, e.Name)
}

// Kind implements failure.Kinded.
func (e *NotFoundError) Kind() failure.Kind { return failure.KindExecutableNotFound }

// ProcessError reports a non-zero exit. Stderr carries the tool's own diagnostic.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, detail)
}

// Kind implements failure.Kinded.
func (e *ProcessError) Kind() failure.Kind { return failure.KindProcessFailed }

// Diagnostic returns the captured stderr, or the exit status when there is none.
func (e *ProcessError) Diagnostic() string {
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		return detail
	}
	return e.Error()
}

// ExecRunner implements Runner on top of os/exec.
type ExecRunner struct {
	logger zerolog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option customizes an ExecRunner.
type Option func(*ExecRunner)

// WithConsole overrides the streams attached commands are connected to.
func WithConsole(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *ExecRunner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewExecRunner returns a runner attached to the process console.
func NewExecRunner(logger zerolog.Logger, opts ...Option) *ExecRunner {
	r := &ExecRunner{
		logger: logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and blocks until it exits or ctx is cancelled.
//
// A missing executable yields *NotFoundError, a non-zero exit yields *ProcessError,
// and cancellation yields failure.ErrInterrupted with Result.Interrupted set. A
// process that dies of SIGINT or exits 130 counts as interrupted even when the
// console signal reached it before ctx was cancelled.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if _, err := exec.LookPath(cmd.Name); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return Result{ExitCode: -1}, &NotFoundError{Name: cmd.Name}
		}
		return Result{ExitCode: -1}, fmt.Errorf("resolve %s: %w", cmd.Name, err)
	}

	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Cancel = func() error {
		return proc.Process.Signal(syscall.SIGINT)
	}
	proc.WaitDelay = interruptGrace

	if len(cmd.Env) > 0 {
		proc.Env = os.Environ()
		for key, value := range cmd.Env {
			proc.Env = append(proc.Env, key+"="+value)
		}
	}

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	if cmd.Attach {
		proc.Stdin = r.stdin
		proc.Stdout = io.MultiWriter(&stdout, r.stdout)
		proc.Stderr = io.MultiWriter(&stderr, r.stderr)
	}

	r.logger.Debug().Str("command", cmd.String()).Str("dir", cmd.Dir).Msg("running command")
	started := time.Now()
	err := proc.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if proc.ProcessState != nil {
		result.ExitCode = proc.ProcessState.ExitCode()
	}

	r.logger.Debug().
		Str("command", cmd.String()).
		Int("exit_code", result.ExitCode).
		Dur("duration", time.Since(started)).
		Msg("command finished")

	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil || interruptedExit(proc.ProcessState) {
		result.Interrupted = true
		return result, failure.ErrInterrupted
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, &ProcessError{
			Command:  cmd.String(),
			ExitCode: exitErr.ExitCode(),
			Stderr:   result.Stderr,
		}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return result, &NotFoundError{Name: cmd.Name}
	}
	return result, fmt.Errorf("run %s: %w", cmd.String(), err)
}

// exitInterrupted is the shell convention for termination by SIGINT (128+2).
const exitInterrupted = 130

func interruptedExit(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	if state.ExitCode() == exitInterrupted {
		return true
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	return ok && status.Signaled() && status.Signal() == syscall.SIGINT
}
