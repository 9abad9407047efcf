package workflow

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/command"
	"github.com/nholik/wolfpy-pipeline/internal/config"
	"github.com/nholik/wolfpy-pipeline/internal/dockerhost"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/nholik/wolfpy-pipeline/internal/version"
	"github.com/rs/zerolog"
)

var releaseDay = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

// hookRunner is a command.Fake that also runs a side effect after a matching
// command line succeeds, e.g. producing dist files for python -m build.
type hookRunner struct {
	*command.Fake
	hooks map[string]func()
}

func newHookRunner() *hookRunner {
	return &hookRunner{Fake: command.NewFake(), hooks: map[string]func(){}}
}

func (h *hookRunner) Run(ctx context.Context, cmd command.Command) (command.Result, error) {
	result, err := h.Fake.Run(ctx, cmd)
	if hook, ok := h.hooks[cmd.String()]; ok && err == nil {
		hook()
	}
	return result, err
}

type stubNotes struct {
	text  string
	err   error
	calls int
}

func (s *stubNotes) ReadLines(string) (string, error) {
	s.calls++
	return s.text, s.err
}

type fakeRepo struct {
	branch    string
	branchErr error
	tags      map[string]bool
	remotes   map[string]string
}

func (r *fakeRepo) CurrentBranch() (string, error) { return r.branch, r.branchErr }

func (r *fakeRepo) TagExists(name string) (bool, error) { return r.tags[name], nil }

func (r *fakeRepo) HasRemote(name string) (bool, error) {
	_, ok := r.remotes[name]
	return ok, nil
}

func (r *fakeRepo) RemoteURL(name string) (string, error) {
	return r.remotes[name], nil
}

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(context.Context) (dockerhost.Daemon, error) {
	f.calls++
	if f.err != nil {
		return dockerhost.Daemon{}, f.err
	}
	return dockerhost.Daemon{APIVersion: "1.45", OSType: "linux"}, nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// newCheckout lays out a minimal valid package at version v.
func newCheckout(t *testing.T, v string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", "[project]\nname = \"wolfpy\"\nversion = \""+v+"\"\nrequires-python = \">=3.9\"\n")
	writeFile(t, root, "README.md", "# WolfPy\n")
	writeFile(t, root, "LICENSE", "MIT\n")
	writeFile(t, root, "src/wolfpy/__init__.py", "")
	writeFile(t, root, "CHANGELOG.md", "# Changelog\n\n## ["+v+"] - 2026-01-02\n\n- Initial release\n")
	return root
}

type harness struct {
	root    string
	runner  *hookRunner
	planner *Planner
	out     *bytes.Buffer
}

func newHarness(t *testing.T, root string, opts ...Option) *harness {
	t.Helper()
	h := &harness{root: root, runner: newHookRunner(), out: &bytes.Buffer{}}
	versions := version.NewManager(
		filepath.Join(root, "pyproject.toml"),
		filepath.Join(root, "CHANGELOG.md"),
		zerolog.Nop(),
		version.WithClock(func() time.Time { return releaseDay }),
	)
	base := []Option{WithVersions(versions), WithOutput(h.out)}
	h.planner = NewPlanner(root, config.DefaultProject(), h.runner, zerolog.Nop(), append(base, opts...)...)
	return h
}

// onBuild makes python -m build produce the two distributions for v.
func (h *harness) onBuild(t *testing.T, v string) {
	h.runner.hooks["python -m build"] = func() {
		writeFile(t, h.root, "dist/wolfpy-"+v+".tar.gz", "sdist")
		writeFile(t, h.root, "dist/wolfpy-"+v+"-py3-none-any.whl", "wheel")
	}
}

func (h *harness) run(t *testing.T, plan pipeline.Plan, gate pipeline.Gate) (pipeline.Report, error) {
	t.Helper()
	opts := []pipeline.Option{}
	if gate != nil {
		opts = append(opts, pipeline.WithGate(gate))
	}
	return pipeline.New(zerolog.Nop(), opts...).Run(context.Background(), plan)
}

func outcomes(report pipeline.Report) map[string]pipeline.Outcome {
	got := make(map[string]pipeline.Outcome, len(report.Results))
	for _, r := range report.Results {
		got[r.Name] = r.Outcome
	}
	return got
}

func equalLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d commands, got %d:\n%q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
