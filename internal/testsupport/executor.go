package testsupport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"agenttodo/internal/command"
)

// FakeExecutor records every command it is asked to run and answers with
// scripted results instead of launching processes.
type FakeExecutor struct {
	mu      sync.Mutex
	calls   []command.Spec
	results map[string]error
}

// NewFakeExecutor returns an executor where every command succeeds.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{results: make(map[string]error)}
}

// FailWith makes commands whose "binary arg0 arg1..." line starts with
// prefix return err. The longest matching prefix wins.
func (f *FakeExecutor) FailWith(prefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[prefix] = err
}

// ExitWith makes commands matching prefix exit with code.
func (f *FakeExecutor) ExitWith(prefix string, code int) {
	f.FailWith(prefix, &command.ExitError{ExitCode: code})
}

// Run implements command.Executor.
func (f *FakeExecutor) Run(_ context.Context, spec command.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	spec.Args = append([]string(nil), spec.Args...)
	f.calls = append(f.calls, spec)

	line := spec.String()
	var (
		match string
		err   error
	)
	for prefix, result := range f.results {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(match) {
			match = prefix
			err = result
		}
	}
	var exitErr *command.ExitError
	if errors.As(err, &exitErr) {
		clone := *exitErr
		clone.Spec = spec
		return &clone
	}
	return err
}

// Calls returns a copy of every recorded command.
func (f *FakeExecutor) Calls() []command.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Spec(nil), f.calls...)
}

// Lines returns the recorded commands rendered as "dir$ binary args...".
func (f *FakeExecutor) Lines() []string {
	calls := f.Calls()
	lines := make([]string, 0, len(calls))
	for _, call := range calls {
		lines = append(lines, fmt.Sprintf("%s$ %s", call.Dir, call.String()))
	}
	return lines
}

// Count reports how many recorded commands start with prefix.
func (f *FakeExecutor) Count(prefix string) int {
	n := 0
	for _, call := range f.Calls() {
		if strings.HasPrefix(call.String(), prefix) {
			n++
		}
	}
	return n
}
