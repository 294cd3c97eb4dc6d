package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"agenttodo/internal/command"
	"agenttodo/internal/history"
	"agenttodo/internal/logging"
	"agenttodo/internal/queue"
	"agenttodo/internal/workspace"
)

// ErrWorkerBusy reports that another worker holds the worker lock.
var ErrWorkerBusy = errors.New("another worker is already running")

// Outcome summarizes what a single RunOnce call did.
type Outcome string

const (
	OutcomeIdle            Outcome = "idle"
	OutcomeCompleted       Outcome = "completed"
	OutcomeFailed          Outcome = "failed"
	OutcomeProvisionFailed Outcome = "provision_failed"
)

// Queue is the subset of the queue store the worker drives.
type Queue interface {
	OldestQueued(ctx context.Context) (*queue.Task, error)
	UpdateStatus(ctx context.Context, id string, status queue.Status) error
}

// Workspaces provisions and disposes of task worktrees.
type Workspaces interface {
	Plan(task queue.Task) workspace.Workspace
	Provision(ctx context.Context, task queue.Task) (workspace.Workspace, error)
	Dispose(ctx context.Context, ws workspace.Workspace) error
	RemovalCommand(ws workspace.Workspace) string
}

// Runner executes a prompt inside a workspace.
type Runner interface {
	Execute(ctx context.Context, dir, prompt string, extra []string) error
}

// Recorder keeps a log of runs. *history.Store satisfies it.
type Recorder interface {
	Start(ctx context.Context, run history.Run) error
	Finish(ctx context.Context, id string, outcome history.Outcome, errMsg string) error
}

// Result describes the task a RunOnce call handled.
type Result struct {
	Outcome   Outcome
	Task      queue.Task
	RunID     string
	Workspace workspace.Workspace
	// CleanupCommand is set whenever a worktree was left on disk.
	CleanupCommand string
	// Err carries the provisioning or runner failure, if any.
	Err error
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger for worker events.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logging.NewComponentLogger(logger, "worker")
	}
}

// WithLockPath enables the single-worker lock at path.
func WithLockPath(path string) Option {
	return func(w *Worker) {
		w.lockPath = strings.TrimSpace(path)
	}
}

// WithRecorder records each run in a history log.
func WithRecorder(rec Recorder) Option {
	return func(w *Worker) {
		w.recorder = rec
	}
}

// WithRunIDs overrides run identifier generation.
func WithRunIDs(next func() string) Option {
	return func(w *Worker) {
		if next != nil {
			w.newRunID = next
		}
	}
}

// Worker coordinates the queue, workspaces, and runner for one task at a time.
type Worker struct {
	queue      Queue
	workspaces Workspaces
	runner     Runner
	recorder   Recorder
	logger     *slog.Logger
	lockPath   string
	newRunID   func() string
}

// New constructs a Worker.
func New(q Queue, workspaces Workspaces, runner Runner, opts ...Option) *Worker {
	w := &Worker{
		queue:      q,
		workspaces: workspaces,
		runner:     runner,
		logger:     logging.NewNop(),
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunOnce processes the oldest queued task, if any. extraArgs are appended
// to the runner's arguments.
//
// The returned error is reserved for failures that leave the queue in an
// unknown state (lock and store errors). Provisioning and runner failures
// are reported through Result.
func (w *Worker) RunOnce(ctx context.Context, extraArgs []string) (Result, error) {
	release, err := w.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	task, err := w.queue.OldestQueued(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load queue: %w", err)
	}
	if task == nil {
		w.logger.Info("no queued tasks found", logging.String(logging.FieldEventType, "queue_idle"))
		return Result{Outcome: OutcomeIdle}, nil
	}

	result := Result{
		Task:      *task,
		RunID:     w.newRunID(),
		Workspace: w.workspaces.Plan(*task),
	}
	ctx = logging.WithTaskID(ctx, task.ID)
	ctx = logging.WithRunID(ctx, result.RunID)
	logger := logging.WithContext(ctx, w.logger)

	logger.Info(
		"processing task",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String("repo_path", task.RepoPath),
		logging.String("base_branch", task.BaseBranch),
		logging.String("created_at", task.CreatedAt),
		logging.String("prompt", task.Prompt),
	)

	if err := w.setStatus(ctx, task.ID, queue.StatusProcessing); err != nil {
		return result, err
	}
	w.recordStart(ctx, logger, result)

	// Once the task is processing it must reach a terminal status even when
	// ctx is canceled by an interrupt.
	settle := context.WithoutCancel(ctx)

	ws, err := w.workspaces.Provision(ctx, *task)
	if err != nil {
		result.Outcome = OutcomeProvisionFailed
		result.Err = err
		logging.ErrorWithContext(
			logger,
			"failed to create worktree; marking task failed",
			"worktree_create_failed",
			logging.Error(err),
			logging.String("worktree", result.Workspace.Path),
			logging.String(logging.FieldErrorHint, "check that the repository path exists and the base branch is valid"),
		)
		if err := w.setStatus(settle, task.ID, queue.StatusFailed); err != nil {
			return result, err
		}
		w.recordFinish(settle, logger, result)
		return result, nil
	}
	result.Workspace = ws

	runErr := w.runner.Execute(ctx, ws.Path, task.Prompt, extraArgs)
	if runErr != nil {
		result.Outcome = OutcomeFailed
		result.Err = runErr
		result.CleanupCommand = w.workspaces.RemovalCommand(ws)
		logging.WarnWithContext(
			logger,
			"task failed; worktree left intact for inspection",
			"task_failed",
			logging.Error(runErr),
			logging.Int("exit_code", command.ExitCode(runErr)),
			logging.String("worktree", ws.Path),
			logging.String(logging.FieldErrorHint, result.CleanupCommand),
			logging.String(logging.FieldImpact, "task marked failed"),
		)
		if err := w.setStatus(settle, task.ID, queue.StatusFailed); err != nil {
			return result, err
		}
		w.recordFinish(settle, logger, result)
		return result, nil
	}

	result.Outcome = OutcomeCompleted
	if err := w.setStatus(settle, task.ID, queue.StatusCompleted); err != nil {
		return result, err
	}
	logger.Info(
		"task completed",
		logging.String(logging.FieldEventType, "task_completed"),
		logging.String("branch", ws.Branch),
	)

	if err := w.workspaces.Dispose(settle, ws); err != nil {
		result.CleanupCommand = w.workspaces.RemovalCommand(ws)
		logging.WarnWithContext(
			logger,
			"failed to remove worktree",
			"worktree_cleanup_failed",
			logging.Error(err),
			logging.String("worktree", ws.Path),
			logging.String(logging.FieldErrorHint, result.CleanupCommand),
			logging.String(logging.FieldImpact, "worktree remains on disk; task is still completed"),
		)
	}
	w.recordFinish(settle, logger, result)
	return result, nil
}

func (w *Worker) acquire() (func(), error) {
	if w.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(w.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure worker lock directory: %w", err)
	}
	lock := flock.New(w.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire worker lock %s: %w", w.lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrWorkerBusy, w.lockPath)
	}
	return func() { _ = lock.Unlock() }, nil
}

func (w *Worker) setStatus(ctx context.Context, id string, status queue.Status) error {
	if err := w.queue.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("mark task %s %s: %w", id, status, err)
	}
	return nil
}

func (w *Worker) recordStart(ctx context.Context, logger *slog.Logger, result Result) {
	if w.recorder == nil {
		return
	}
	run := history.Run{
		ID:            result.RunID,
		TaskID:        result.Task.ID,
		RepoPath:      result.Task.RepoPath,
		Branch:        result.Workspace.Branch,
		WorkspacePath: result.Workspace.Path,
	}
	if err := w.recorder.Start(ctx, run); err != nil {
		logging.WarnWithContext(logger, "failed to record run start", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

func (w *Worker) recordFinish(ctx context.Context, logger *slog.Logger, result Result) {
	if w.recorder == nil {
		return
	}
	var errMsg string
	if result.Err != nil {
		errMsg = result.Err.Error()
	}
	if err := w.recorder.Finish(ctx, result.RunID, history.Outcome(result.Outcome), errMsg); err != nil {
		logging.WarnWithContext(logger, "failed to record run outcome", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history shows the run as still running"),
		)
	}
}
