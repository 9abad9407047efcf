// Package version owns the project's semantic version: parsing, bumping and
// persisting it alongside the change log.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
)

// Version is a major.minor.patch triple. Pre-release and build metadata are not allowed.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Parse reads a strict "X.Y.Z" string.
func Parse(s string) (Version, error) {
	parsed, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("parse version %q: %w", s, err)
	}
	if parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return Version{}, fmt.Errorf("parse version %q: pre-release and build metadata are not supported", s)
	}
	return Version{Major: parsed.Major(), Minor: parsed.Minor(), Patch: parsed.Patch()}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Tag returns the VCS tag name for v.
func (v Version) Tag() string {
	return "v" + v.String()
}

// Compare returns -1, 0 or 1 ordering lexicographically on (major, minor, patch).
func (v Version) Compare(other Version) int {
	return v.semver().Compare(other.semver())
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, "", "")
}

// Kind selects which component a bump increments.
type Kind string

const (
	KindMajor Kind = "major"
	KindMinor Kind = "minor"
	KindPatch Kind = "patch"
)

// Kinds lists the accepted bump kinds in display order.
var Kinds = []Kind{KindMajor, KindMinor, KindPatch}

// ParseKind validates a bump kind supplied by a caller.
func ParseKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case KindMajor, KindMinor, KindPatch:
		return kind, nil
	}
	return "", &failure.ConfigError{Field: "version bump kind", Reason: fmt.Sprintf("%q is not one of major, minor, patch", s)}
}

// Bump applies kind: major resets minor and patch, minor resets patch.
func (v Version) Bump(kind Kind) (Version, error) {
	current := v.semver()
	var next semver.Version
	switch kind {
	case KindMajor:
		next = current.IncMajor()
	case KindMinor:
		next = current.IncMinor()
	case KindPatch:
		next = current.IncPatch()
	default:
		return Version{}, &failure.ConfigError{Field: "version bump kind", Reason: fmt.Sprintf("%q is not one of major, minor, patch", kind)}
	}
	return Version{Major: next.Major(), Minor: next.Minor(), Patch: next.Patch()}, nil
}
