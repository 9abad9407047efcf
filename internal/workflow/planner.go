// Package workflow resolves a caller's intent into the ordered step list the
// sequencer runs. Every branch (test or production target, bump kind, docker
// action) is decided here, before the plan exists.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nholik/wolfpy-pipeline/internal/atomicfile"
	"github.com/nholik/wolfpy-pipeline/internal/command"
	"github.com/nholik/wolfpy-pipeline/internal/config"
	"github.com/nholik/wolfpy-pipeline/internal/dockerhost"
	"github.com/nholik/wolfpy-pipeline/internal/vcs"
	"github.com/nholik/wolfpy-pipeline/internal/version"
	"github.com/rs/zerolog"
)

const (
	distDir       = "dist"
	buildDir      = "build"
	projectFile   = "pyproject.toml"
	changelogFile = "CHANGELOG.md"
)

// TextProvider supplies free text typed by the operator.
type TextProvider interface {
	ReadLines(message string) (string, error)
}

// Repository is the read-only view of the checkout the release workflow needs.
type Repository interface {
	CurrentBranch() (string, error)
	TagExists(name string) (bool, error)
	HasRemote(name string) (bool, error)
	RemoteURL(name string) (string, error)
}

// Planner builds plans for one project checkout.
type Planner struct {
	root     string
	python   string
	project  config.Project
	runner   command.Runner
	versions *version.Manager
	docker   dockerhost.Pinger
	openRepo func(dir string) (Repository, error)
	out      io.Writer
	logger   zerolog.Logger
}

// Option customizes a Planner.
type Option func(*Planner)

// WithPython overrides the interpreter used for python -m invocations.
func WithPython(python string) Option {
	return func(p *Planner) {
		if python != "" {
			p.python = python
		}
	}
}

// WithVersions overrides the version manager.
func WithVersions(m *version.Manager) Option {
	return func(p *Planner) {
		if m != nil {
			p.versions = m
		}
	}
}

// WithDocker sets the daemon client used by the docker preflight.
// Without one the daemon ping is reported as skipped.
func WithDocker(pinger dockerhost.Pinger) Option {
	return func(p *Planner) {
		p.docker = pinger
	}
}

// WithRepository overrides how the git checkout is opened.
func WithRepository(open func(dir string) (Repository, error)) Option {
	return func(p *Planner) {
		if open != nil {
			p.openRepo = open
		}
	}
}

// WithOutput sets where informational lines (file listings, instructions) go.
func WithOutput(out io.Writer) Option {
	return func(p *Planner) {
		if out != nil {
			p.out = out
		}
	}
}

// NewPlanner returns a Planner rooted at root.
func NewPlanner(root string, project config.Project, runner command.Runner, logger zerolog.Logger, opts ...Option) *Planner {
	p := &Planner{
		root:    root,
		python:  "python",
		project: project,
		runner:  runner,
		out:     io.Discard,
		logger:  logger,
		openRepo: func(dir string) (Repository, error) {
			repo, err := vcs.Open(dir)
			if err != nil {
				return nil, err
			}
			return repo, nil
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.versions == nil {
		p.versions = version.NewManager(p.path(projectFile), p.path(changelogFile), logger)
	}
	return p
}

func (p *Planner) path(rel string) string {
	return filepath.Join(p.root, rel)
}

func (p *Planner) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// run executes name with args in the project root.
func (p *Planner) run(ctx context.Context, name string, args ...string) (command.Result, error) {
	return p.runner.Run(ctx, command.Command{Name: name, Args: args, Dir: p.root})
}

// attach executes a command whose output the operator should see as it happens.
func (p *Planner) attach(ctx context.Context, name string, args ...string) (command.Result, error) {
	return p.runner.Run(ctx, command.Command{Name: name, Args: args, Dir: p.root, Attach: true})
}

func (p *Planner) pythonModule(ctx context.Context, attach bool, module string, args ...string) (command.Result, error) {
	full := append([]string{"-m", module}, args...)
	if attach {
		return p.attach(ctx, p.python, full...)
	}
	return p.run(ctx, p.python, full...)
}

// writeArtifact writes data at rel under the root and reports the outcome.
func (p *Planner) writeArtifact(rel string, data []byte) error {
	path := p.path(rel)
	written, err := atomicfile.WriteIfChanged(path, data)
	if err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	state := "unchanged"
	if written {
		state = "written"
	}
	p.logger.Debug().
		Str("path", rel).
		Str("sha256", atomicfile.Fingerprint(data)).
		Str("state", state).
		Msg("artifact")
	p.printf("   %s %s\n", rel, state)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
