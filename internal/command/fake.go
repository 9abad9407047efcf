package command

import (
	"context"
	"strings"
	"sync"
)

// Response is what a Fake answers for a matched command line.
type Response struct {
	Result Result
	Err    error
}

// Fake is a scripted Runner for tests. Commands are matched by their rendered
// command line; the longest matching prefix wins. Unmatched commands succeed.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Command
}

// NewFake returns an empty scripted runner.
func NewFake() *Fake {
	return &Fake{responses: map[string]Response{}}
}

// On scripts the response for every command line starting with prefix.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)

	line := cmd.String()
	best := -1
	var resp Response
	for prefix, candidate := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			resp = candidate
		}
	}
	return resp.Result, resp.Err
}

// Calls returns the rendered command lines in invocation order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		lines = append(lines, call.String())
	}
	return lines
}

// Commands returns the recorded commands in invocation order.
func (f *Fake) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}
