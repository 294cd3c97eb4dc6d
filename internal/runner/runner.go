// Package runner launches the external agent that carries out a task prompt
// inside its workspace.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"agenttodo/internal/command"
	"agenttodo/internal/logging"
)

// Placeholder is the argument replaced by the task prompt.
const Placeholder = "{prompt}"

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the logger for launch and exit events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, "runner")
	}
}

// WithIO overrides the streams handed to the runner. Nil streams inherit
// the parent's.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// Runner executes one prompt per call.
type Runner struct {
	binary string
	args   []string
	exec   command.Executor
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New constructs a Runner for binary with the given argument template.
func New(binary string, args []string, opts ...Option) *Runner {
	r := &Runner{
		binary: strings.TrimSpace(binary),
		args:   append([]string(nil), args...),
		exec:   command.OSExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildArgs expands the argument template for prompt and appends extra.
func (r *Runner) BuildArgs(prompt string, extra []string) []string {
	out := make([]string, 0, len(r.args)+len(extra)+1)
	substituted := false
	for _, arg := range r.args {
		if arg == Placeholder {
			out = append(out, prompt)
			substituted = true
			continue
		}
		out = append(out, arg)
	}
	if !substituted {
		out = append(out, prompt)
	}
	return append(out, extra...)
}

// Execute runs the prompt with dir as the working directory and blocks
// until the process exits. A zero exit returns nil; a non-zero exit returns
// a *command.ExitError; a process that never started returns an error
// wrapping command.ErrLaunch.
func (r *Runner) Execute(ctx context.Context, dir, prompt string, extra []string) error {
	spec := command.Spec{
		Binary: r.binary,
		Args:   r.BuildArgs(prompt, extra),
		Dir:    dir,
		Stdin:  r.stdin,
		Stdout: r.stdout,
		Stderr: r.stderr,
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Info(
		"launching runner",
		logging.String(logging.FieldEventType, "runner_start"),
		logging.String("binary", r.binary),
		logging.String("workdir", dir),
		logging.Int("extra_args", len(extra)),
	)

	start := time.Now()
	err := r.exec.Run(ctx, spec)
	logger.Info(
		"runner exited",
		logging.String(logging.FieldEventType, "runner_exit"),
		logging.Int("exit_code", command.ExitCode(err)),
		logging.Duration("duration", time.Since(start)),
	)
	if err != nil {
		return fmt.Errorf("run %s: %w", r.binary, err)
	}
	return nil
}
