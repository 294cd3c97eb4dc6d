package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"agenttodo/internal/command"
	"agenttodo/internal/history"
	"agenttodo/internal/logging"
	"agenttodo/internal/runner"
	"agenttodo/internal/worker"
	"agenttodo/internal/workspace"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker [runner args...]",
		Short: "Process the oldest queued task",
		Long: `Process the oldest queued task: create its worktree, run the configured
runner inside it, and record the result. Arguments are appended to the
runner's command line; put runner flags after "--".`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, ctx, args)
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runWorker(cmd *cobra.Command, ctx *commandContext, extraArgs []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.loggerValue()

	store, err := ctx.openStore()
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	workspaces := workspace.NewManager(
		cfg.Paths.WorktreeDir,
		workspace.WithGitBinary(cfg.Git.Binary),
		workspace.WithLogger(logger),
		workspace.WithOutput(stdout, stderr),
	)
	taskRunner := runner.New(
		cfg.Runner.Binary,
		cfg.Runner.Args,
		runner.WithLogger(logger),
		runner.WithIO(cmd.InOrStdin(), stdout, stderr),
	)

	opts := []worker.Option{
		worker.WithLogger(logger),
		worker.WithLockPath(cfg.WorkerLockPath()),
	}
	if cfg.History.Enabled {
		runs, err := history.Open(cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String("path", cfg.History.Path),
				logging.String(logging.FieldImpact, "this run will not appear in agent-todo history"),
			)
		} else {
			defer runs.Close()
			opts = append(opts, worker.WithRecorder(runs))
		}
	}

	w := worker.New(store, workspaces, taskRunner, opts...)
	result, err := w.RunOnce(cmd.Context(), extraArgs)
	if err != nil {
		if errors.Is(err, worker.ErrWorkerBusy) {
			return fmt.Errorf("%w; wait for it to finish or remove a stale lock at %s", err, cfg.WorkerLockPath())
		}
		return err
	}
	printWorkerResult(stdout, result)
	return nil
}

func printWorkerResult(out io.Writer, result worker.Result) {
	task := result.Task
	ws := result.Workspace
	switch result.Outcome {
	case worker.OutcomeIdle:
		fmt.Fprintln(out, "No queued tasks found.")
	case worker.OutcomeProvisionFailed:
		fmt.Fprintf(out, "\n=== Task %s failed ===\n", task.ID)
		fmt.Fprintln(out, "Failed to create worktree. Task marked as failed.")
		if result.Err != nil {
			fmt.Fprintf(out, "Error: %v\n", result.Err)
		}
	case worker.OutcomeFailed:
		fmt.Fprintf(out, "\n=== Task %s failed ===\n", task.ID)
		if code := command.ExitCode(result.Err); code > 0 {
			fmt.Fprintf(out, "Runner exited with status %d\n", code)
		} else if result.Err != nil {
			fmt.Fprintf(out, "Error: %v\n", result.Err)
		}
		fmt.Fprintf(out, "Worktree location: %s\n", ws.Path)
		fmt.Fprintf(out, "Branch: %s\n", ws.Branch)
		fmt.Fprintln(out, "You can investigate the issue and manually fix it.")
		printCleanup(out, result.CleanupCommand)
	case worker.OutcomeCompleted:
		fmt.Fprintf(out, "\n=== Task %s completed successfully ===\n", task.ID)
		fmt.Fprintf(out, "Branch: %s\n", ws.Branch)
		if result.CleanupCommand == "" {
			fmt.Fprintf(out, "Worktree removed: %s\n", ws.Path)
			fmt.Fprintf(out, "\nReview the changes with: cd %s && git log %s..%s\n", task.RepoPath, task.BaseBranch, ws.Branch)
		} else {
			fmt.Fprintf(out, "Worktree location: %s\n", ws.Path)
			printCleanup(out, result.CleanupCommand)
		}
	}
}

func printCleanup(out io.Writer, cleanup string) {
	if cleanup == "" {
		return
	}
	fmt.Fprintln(out, "\nRun the following command to remove the worktree when done:")
	fmt.Fprintf(out, "  %s\n", cleanup)
}
