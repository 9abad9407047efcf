package version

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/rs/zerolog"
)

const pyproject = `[project]
name = "wolfpy"
version = "1.2.3"
requires-python = ">=3.11"
`

func newTestManager(t *testing.T, project, changelog string) (*Manager, string, string) {
	t.Helper()
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "pyproject.toml")
	changelogPath := filepath.Join(dir, "CHANGELOG.md")
	if project != "" {
		if err := os.WriteFile(projectPath, []byte(project), 0o644); err != nil {
			t.Fatalf("seed project: %v", err)
		}
	}
	if changelog != "" {
		if err := os.WriteFile(changelogPath, []byte(changelog), 0o644); err != nil {
			t.Fatalf("seed changelog: %v", err)
		}
	}
	clock := func() time.Time { return time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC) }
	return NewManager(projectPath, changelogPath, zerolog.Nop(), WithClock(clock)), projectPath, changelogPath
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestManager_BumpMinorRewritesOnlyVersion(t *testing.T) {
	m, projectPath, _ := newTestManager(t, pyproject, "")

	next, err := m.Bump(KindMinor)
	if err != nil {
		t.Fatalf("bump: %v", err)
	}
	if next != (Version{1, 3, 0}) {
		t.Fatalf("expected 1.3.0, got %v", next)
	}

	want := strings.Replace(pyproject, `version = "1.2.3"`, `version = "1.3.0"`, 1)
	if got := readFile(t, projectPath); got != want {
		t.Fatalf("unexpected descriptor:\n%s", got)
	}

	current, err := m.Current()
	if err != nil || current != next {
		t.Fatalf("expected current %v, got %v err=%v", next, current, err)
	}
}

func TestManager_BumpMissingProjectFile(t *testing.T) {
	m, _, _ := newTestManager(t, "", "")

	_, err := m.Bump(KindPatch)
	if failure.KindOf(err) != failure.KindValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestManager_BumpWithoutVersionLeavesFileUntouched(t *testing.T) {
	content := "[project]\nname = \"wolfpy\"\n"
	m, projectPath, _ := newTestManager(t, content, "")

	if _, err := m.Bump(KindPatch); !errors.Is(err, ErrVersionFieldMissing) {
		t.Fatalf("expected ErrVersionFieldMissing, got %v", err)
	}
	if got := readFile(t, projectPath); got != content {
		t.Fatalf("descriptor changed on failure:\n%s", got)
	}
}

func TestManager_Release(t *testing.T) {
	m, projectPath, changelogPath := newTestManager(t, pyproject, "# Changelog\n\n## [1.2.3] - 2026-09-01\n\n- fix\n")

	next, err := m.Release(KindPatch, "- tidy release flow")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if next != (Version{1, 2, 4}) {
		t.Fatalf("expected 1.2.4, got %v", next)
	}
	if !strings.Contains(readFile(t, projectPath), `version = "1.2.4"`) {
		t.Fatalf("descriptor not bumped")
	}

	want := "# Changelog\n\n## [1.2.4] - 2026-10-14\n\n- tidy release flow\n\n## [1.2.3] - 2026-09-01\n\n- fix\n"
	if got := readFile(t, changelogPath); got != want {
		t.Fatalf("unexpected changelog:\n%s", got)
	}
}

func TestManager_ReleaseReportsInconsistentState(t *testing.T) {
	m, projectPath, changelogPath := newTestManager(t, pyproject, "")

	next, err := m.Release(KindMajor, "- breaking")
	if err == nil {
		t.Fatalf("expected error when changelog is missing")
	}

	var inconsistent *failure.InconsistentStateError
	if !errors.As(err, &inconsistent) {
		t.Fatalf("expected InconsistentStateError, got %T: %v", err, err)
	}
	if failure.KindOf(err) != failure.KindInconsistentState {
		t.Fatalf("expected inconsistent state kind, got %s", failure.KindOf(err))
	}
	if inconsistent.Pending != changelogPath {
		t.Fatalf("expected pending %s, got %s", changelogPath, inconsistent.Pending)
	}
	if len(inconsistent.Written) != 1 || inconsistent.Written[0] != projectPath {
		t.Fatalf("unexpected written list %v", inconsistent.Written)
	}
	if next != (Version{2, 0, 0}) {
		t.Fatalf("expected the written version to be returned, got %v", next)
	}
	if !strings.Contains(readFile(t, projectPath), `version = "2.0.0"`) {
		t.Fatalf("descriptor should keep the bumped version")
	}
}

func TestManager_RecordChangeRequiresChangelog(t *testing.T) {
	m, _, _ := newTestManager(t, pyproject, "")

	err := m.RecordChange(Version{1, 2, 4}, m.Today(), "- note")
	if failure.KindOf(err) != failure.KindValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestManager_ConcurrentBumpsSerialize(t *testing.T) {
	m, _, _ := newTestManager(t, pyproject, "")

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := m.Bump(KindPatch); err != nil {
				t.Errorf("bump: %v", err)
			}
		}()
	}
	wg.Wait()

	current, err := m.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != (Version{1, 2, 3 + workers}) {
		t.Fatalf("expected %d serialized bumps, got %v", workers, current)
	}
}
