package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"agenttodo/internal/command"
	"agenttodo/internal/logging"
	"agenttodo/internal/queue"
)

// ErrProvision marks a worktree that could not be created.
var ErrProvision = errors.New("provision workspace")

// ErrDispose marks a worktree that could not be removed.
var ErrDispose = errors.New("dispose workspace")

// Workspace is the worktree bound to one task for the duration of a run.
type Workspace struct {
	TaskID     string
	RepoPath   string
	BaseBranch string
	Branch     string
	Path       string
}

// Option configures a Manager.
type Option func(*Manager)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(m *Manager) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// WithGitBinary overrides the git executable.
func WithGitBinary(binary string) Option {
	return func(m *Manager) {
		if binary = strings.TrimSpace(binary); binary != "" {
			m.gitBinary = binary
		}
	}
}

// WithLogger sets the logger used for provisioning and cleanup events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "workspace")
	}
}

// WithOutput redirects git's output streams. Both default to the parent's.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(m *Manager) {
		m.stdout = stdout
		m.stderr = stderr
	}
}

// Manager handles worktree allocation and cleanup for tasks.
type Manager struct {
	root      string
	gitBinary string
	exec      command.Executor
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
}

// NewManager returns a Manager that places worktrees under root.
func NewManager(root string, opts ...Option) *Manager {
	m := &Manager{
		root:      strings.TrimSpace(root),
		gitBinary: "git",
		exec:      command.OSExecutor{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BranchName derives the dedicated branch for a task.
func BranchName(taskID string) string {
	return "task-" + taskID
}

// PathFor derives the worktree directory for a task.
func PathFor(root, repoPath, taskID string) string {
	repoName := filepath.Base(filepath.Clean(repoPath))
	return filepath.Join(root, repoName+"-"+taskID)
}

// Plan returns the workspace a task will use without touching the filesystem.
func (m *Manager) Plan(task queue.Task) Workspace {
	return Workspace{
		TaskID:     task.ID,
		RepoPath:   task.RepoPath,
		BaseBranch: task.BaseBranch,
		Branch:     BranchName(task.ID),
		Path:       PathFor(m.root, task.RepoPath, task.ID),
	}
}

// Provision creates the task's branch and worktree from its base branch.
func (m *Manager) Provision(ctx context.Context, task queue.Task) (Workspace, error) {
	ws := m.Plan(task)
	logger := logging.WithContext(ctx, m.logger)

	if m.root == "" {
		return ws, fmt.Errorf("%w: worktree root not configured", ErrProvision)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return ws, fmt.Errorf("%w: create worktree root: %w", ErrProvision, err)
	}

	logger.Info(
		"creating worktree",
		logging.String(logging.FieldEventType, "worktree_create"),
		logging.String("worktree", ws.Path),
		logging.String("branch", ws.Branch),
		logging.String("base_branch", ws.BaseBranch),
	)

	spec := m.git(ws.RepoPath, "worktree", "add", "-b", ws.Branch, ws.Path, ws.BaseBranch)
	if err := m.exec.Run(ctx, spec); err != nil {
		return ws, fmt.Errorf("%w: %s: %w", ErrProvision, spec, err)
	}
	return ws, nil
}

// Dispose removes the task's worktree. The branch is kept so the work
// remains reachable.
func (m *Manager) Dispose(ctx context.Context, ws Workspace) error {
	logger := logging.WithContext(ctx, m.logger)
	logger.Info(
		"removing worktree",
		logging.String(logging.FieldEventType, "worktree_remove"),
		logging.String("worktree", ws.Path),
	)

	spec := m.git(ws.RepoPath, "worktree", "remove", ws.Path)
	if err := m.exec.Run(ctx, spec); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDispose, spec, err)
	}
	return nil
}

// RemovalCommand is the shell command an operator runs to discard ws by hand.
func (m *Manager) RemovalCommand(ws Workspace) string {
	return fmt.Sprintf("cd %s && %s worktree remove %s", ws.RepoPath, m.gitBinary, ws.Path)
}

func (m *Manager) git(repoPath string, args ...string) command.Spec {
	return command.Spec{
		Binary: m.gitBinary,
		Args:   args,
		Dir:    repoPath,
		Stdout: m.stdout,
		Stderr: m.stderr,
	}
}
