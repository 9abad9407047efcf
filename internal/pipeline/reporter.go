package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleReporter prints one progress line per finished step.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	ok      lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	detail  lipgloss.Style
}

// NewConsoleReporter styles output for out. Colors are dropped automatically
// when out is not a terminal.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	r := lipgloss.NewRenderer(out)
	return &ConsoleReporter{
		out:     out,
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		failed:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		skipped: r.NewStyle().Foreground(lipgloss.Color("3")),
		detail:  r.NewStyle().Faint(true),
	}
}

// StepStarted implements Reporter.
func (c *ConsoleReporter) StepStarted(string, string) {}

// StepFinished implements Reporter.
func (c *ConsoleReporter) StepFinished(_ string, result StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.Line(result))
}

// Line formats a step result, e.g. "✓ build (1.2s)".
func (c *ConsoleReporter) Line(result StepResult) string {
	elapsed := c.detail.Render("(" + result.Duration.Round(time.Millisecond).String() + ")")
	switch result.Outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("%s %s %s", c.ok.Render("✓"), result.Name, elapsed)
	case OutcomeSkipped:
		line := fmt.Sprintf("%s %s", c.skipped.Render("-"), result.Name)
		if result.Detail != "" {
			line += " " + c.detail.Render("skipped: "+result.Detail)
		} else {
			line += " " + c.detail.Render("skipped")
		}
		return line
	default:
		line := fmt.Sprintf("%s %s %s", c.failed.Render("✗"), result.Name, elapsed)
		if result.Detail != "" {
			line += "\n  " + result.Detail
		}
		return line
	}
}
