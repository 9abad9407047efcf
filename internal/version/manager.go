package version

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/atomicfile"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/rs/zerolog"
)

// Manager reads and rewrites the project descriptor and the change log.
// Each file is replaced atomically; the pair is not transactional.
type Manager struct {
	projectFile   string
	changelogFile string
	logger        zerolog.Logger
	clock         func() time.Time
	mu            sync.Mutex
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock injects the clock used to date change log entries.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager returns a Manager for the given descriptor and change log paths.
func NewManager(projectFile, changelogFile string, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		projectFile:   projectFile,
		changelogFile: changelogFile,
		logger:        logger,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current reads the persisted version.
func (m *Manager) Current() (Version, error) {
	content, err := m.readProject()
	if err != nil {
		return Version{}, err
	}
	v, err := ReadVersion(content)
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", filepath.Base(m.projectFile), err)
	}
	return v, nil
}

// Bump increments the persisted version by kind and returns the new value.
func (m *Manager) Bump(kind Kind) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bumpLocked(kind)
}

func (m *Manager) bumpLocked(kind Kind) (Version, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Version{}, err
	}

	content, err := m.readProject()
	if err != nil {
		return Version{}, err
	}
	current, err := ReadVersion(content)
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", filepath.Base(m.projectFile), err)
	}
	next, err := current.Bump(kind)
	if err != nil {
		return Version{}, err
	}

	updated, err := ReplaceVersion(content, next)
	if err != nil {
		return Version{}, err
	}
	if err := atomicfile.WriteFile(m.projectFile, updated); err != nil {
		return Version{}, fmt.Errorf("write %s: %w", m.projectFile, err)
	}

	m.logger.Info().
		Str("previous", current.String()).
		Str("version", next.String()).
		Str("path", m.projectFile).
		Msg("version bumped")
	return next, nil
}

// RecordChange prepends an entry for v to the change log.
func (m *Manager) RecordChange(v Version, date time.Time, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordLocked(Entry{Version: v, Date: date, Body: body})
}

func (m *Manager) recordLocked(entry Entry) error {
	content, err := os.ReadFile(m.changelogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return failure.Validation(fmt.Sprintf("missing %s", filepath.Base(m.changelogFile)))
		}
		return fmt.Errorf("read %s: %w", m.changelogFile, err)
	}

	updated, err := SpliceChangelog(content, entry)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(m.changelogFile), err)
	}
	if err := atomicfile.WriteFile(m.changelogFile, updated); err != nil {
		return fmt.Errorf("write %s: %w", m.changelogFile, err)
	}

	m.logger.Info().
		Str("version", entry.Version.String()).
		Str("path", m.changelogFile).
		Msg("changelog updated")
	return nil
}

// Release bumps the version and records body under today's date. A change log
// failure after the version was written is reported as
// *failure.InconsistentStateError so the operator can reconcile by hand.
func (m *Manager) Release(kind Kind, body string) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.bumpLocked(kind)
	if err != nil {
		return Version{}, err
	}
	if err := m.recordLocked(Entry{Version: next, Date: m.clock(), Body: body}); err != nil {
		return next, &failure.InconsistentStateError{
			Written: []string{m.projectFile},
			Pending: m.changelogFile,
			Err:     err,
		}
	}
	return next, nil
}

// Today returns the manager clock's current time.
func (m *Manager) Today() time.Time {
	return m.clock()
}

func (m *Manager) readProject() ([]byte, error) {
	content, err := os.ReadFile(m.projectFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.Validation(fmt.Sprintf("missing %s", filepath.Base(m.projectFile)))
		}
		return nil, fmt.Errorf("read %s: %w", m.projectFile, err)
	}
	return content, nil
}
