// Package prompt reads operator answers from an interactive console.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console prompts on a writer and reads answers from a shared reader so that
// queued input is consumed in order across prompts.
type Console struct {
	mu     sync.Mutex
	reader *bufio.Reader
	out    io.Writer
}

// New returns a Console reading from in and prompting on out.
func New(in io.Reader, out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{reader: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question. Only the literal answer "yes", case-insensitive
// after trimming whitespace, is affirmative. End of input is a no.
func (c *Console) Confirm(question string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s (yes/no): ", question)
	line, err := c.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return IsAffirmative(line), nil
}

// ReadLines collects lines until a blank line or end of input and returns them
// joined by newlines.
func (c *Console) ReadLines(message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, message)
	var lines []string
	for {
		line, err := c.reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("read input: %w", err)
			}
			if strings.TrimSpace(trimmed) != "" {
				lines = append(lines, trimmed)
			}
			break
		}
		if strings.TrimSpace(trimmed) == "" {
			break
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n"), nil
}

// IsAffirmative reports whether answer is an explicit "yes".
func IsAffirmative(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

// Scripted answers confirmations from a fixed list. Once the list is
// exhausted every further question is denied.
type Scripted struct {
	mu        sync.Mutex
	answers   []bool
	Questions []string
}

// NewScripted returns a Scripted gate replying with answers in order.
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

// Confirm records question and pops the next answer.
func (s *Scripted) Confirm(question string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Questions = append(s.Questions, question)
	if len(s.answers) == 0 {
		return false, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}
