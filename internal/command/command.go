// Package command launches external binaries with inherited output streams.
//
// The workspace manager and the runner both depend on the Executor interface
// so tests can substitute a recorder for git and the task runner.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrLaunch marks failures to start a process (missing binary, bad working
// directory). It is distinct from a process that ran and exited non-zero.
var ErrLaunch = errors.New("launch failed")

// Spec describes a single process invocation.
type Spec struct {
	Binary string
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the invocation for logs.
func (s Spec) String() string {
	return strings.TrimSpace(s.Binary + " " + strings.Join(s.Args, " "))
}

// ExitError reports a process that ran to completion with a non-zero status.
type ExitError struct {
	Spec     Spec
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Spec.Binary, e.ExitCode)
}

// ExitCode extracts the exit status from err. It returns 0 for nil, the
// status for an *ExitError, and -1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, spec Spec) error
}

// OSExecutor runs processes on the host. Unset streams inherit the parent's.
type OSExecutor struct{}

// Run starts spec and blocks until it exits. Canceling ctx interrupts the
// process instead of killing it; Run still waits for the exit status.
func (OSExecutor) Run(ctx context.Context, spec Spec) error {
	if strings.TrimSpace(spec.Binary) == "" {
		return fmt.Errorf("%w: binary required", ErrLaunch)
	}
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.Dir = spec.Dir
	cmd.Stdin = orReader(spec.Stdin, os.Stdin)
	cmd.Stdout = orWriter(spec.Stdout, os.Stdout)
	cmd.Stderr = orWriter(spec.Stderr, os.Stderr)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLaunch, spec.Binary, err)
	}
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Spec: spec, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("wait for %s: %w", spec.Binary, err)
	}
	return nil
}

func orReader(r io.Reader, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func orWriter(w io.Writer, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
