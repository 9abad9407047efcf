package version

import (
	"fmt"
	"strings"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
)

const changelogDateLayout = "2006-01-02"

// Entry is one change log section.
type Entry struct {
	Version Version
	Date    time.Time
	Body    string
}

// Heading renders the entry's markdown heading, e.g. "## [1.3.0] - 2026-10-14".
func (e Entry) Heading() string {
	return fmt.Sprintf("## [%s] - %s", e.Version, e.Date.Format(changelogDateLayout))
}

func (e Entry) lines() []string {
	lines := []string{e.Heading(), ""}
	body := strings.Trim(e.Body, "\r\n")
	if strings.TrimSpace(body) != "" {
		for _, line := range strings.Split(body, "\n") {
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
		lines = append(lines, "")
	}
	return lines
}

// SpliceChangelog inserts entry directly after the document title, the first
// non-empty line. Everything up to and including the title, and the blank lines
// following it, are kept verbatim. Existing entries follow the new one in their
// original order. CRLF documents stay CRLF.
func SpliceChangelog(content []byte, entry Entry) ([]byte, error) {
	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(string(content), eol)

	title := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			title = i
			break
		}
	}
	if title < 0 {
		return nil, failure.Validation("changelog has no title line")
	}

	gap := title + 1
	for gap < len(lines) && strings.TrimSpace(lines[gap]) == "" {
		gap++
	}

	out := make([]string, 0, len(lines)+8)
	out = append(out, lines[:gap]...)
	if gap == title+1 {
		out = append(out, "")
	}
	out = append(out, entry.lines()...)
	out = append(out, lines[gap:]...)
	return []byte(strings.Join(out, eol)), nil
}
