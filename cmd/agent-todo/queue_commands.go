package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"agenttodo/internal/config"
	"agenttodo/internal/queue"
)

const listPromptWidth = 60

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the task queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var repoPath, baseBranch, prompt string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Queue a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(prompt) == "" {
				return errors.New("--prompt must not be empty")
			}
			if strings.TrimSpace(baseBranch) == "" {
				return errors.New("--base must not be empty")
			}
			repo := strings.TrimSpace(repoPath)
			if repo == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
				repo = wd
			}
			repo, err := config.ExpandPath(repo)
			if err != nil {
				return fmt.Errorf("resolve repository path: %w", err)
			}

			return ctx.withStore(func(store *queue.Store) error {
				task, err := store.Add(cmd.Context(), repo, strings.TrimSpace(baseBranch), prompt)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Task queued successfully!")
				fmt.Fprintln(out)
				fmt.Fprintf(out, "ID: %s\n", task.ID)
				fmt.Fprintf(out, "Repository: %s\n", task.RepoPath)
				fmt.Fprintf(out, "Base Branch: %s\n", task.BaseBranch)
				fmt.Fprintf(out, "Created: %s\n", task.CreatedAt)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&repoPath, "repo", "r", "", "Repository path (defaults to the current directory)")
	cmd.Flags().StringVarP(&baseBranch, "base", "b", "", "Base branch for the task's worktree")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt handed to the runner")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatusFilter(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				tasks, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				tasks = filterTasks(tasks, filter)
				if jsonOutput {
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Status", "Repository", "Base", "Created", "Prompt"},
					buildTaskRows(tasks),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by task status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, task)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", task.ID)
				fmt.Fprintf(out, "Status:      %s\n", statusLabel(task.Status))
				fmt.Fprintf(out, "Repository:  %s\n", task.RepoPath)
				fmt.Fprintf(out, "Base Branch: %s\n", task.BaseBranch)
				fmt.Fprintf(out, "Created:     %s\n", task.CreatedAt)
				fmt.Fprintf(out, "Prompt:\n%s\n", indentBlock(task.Prompt, "  "))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a task from the queue regardless of status",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !removed {
					fmt.Fprintf(out, "Task %s not found; nothing removed.\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Task %s removed from queue.\n", args[0])
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Put a failed or stuck processing task back in the queue",
		Long: `Reset a failed task, or a task left in processing by a worker that died,
back to queued so the next worker run picks it up. Remove the old worktree
and task branch first; provisioning reuses the same names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %s not found", args[0])
				}
				out := cmd.OutOrStdout()
				switch task.Status {
				case queue.StatusQueued:
					fmt.Fprintf(out, "Task %s is already queued.\n", task.ID)
					return nil
				case queue.StatusCompleted:
					return fmt.Errorf("task %s already completed; queue a new task instead", task.ID)
				}
				if !task.Status.IsTerminal() {
					if err := ensureNoActiveWorker(ctx); err != nil {
						return fmt.Errorf("task %s is %s: %w", task.ID, task.Status, err)
					}
				}
				if err := store.UpdateStatus(cmd.Context(), task.ID, queue.StatusQueued); err != nil {
					return err
				}
				fmt.Fprintf(out, "Task %s moved from %s back to queued.\n", task.ID, task.Status)
				return nil
			})
		},
	}
}

// ensureNoActiveWorker fails while another process holds the worker lock, so
// a task that is really running is not handed out twice.
func ensureNoActiveWorker(ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.WorkerLockPath()); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	lock := flock.New(cfg.WorkerLockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("check worker lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("a worker is running (lock %s); retry after it exits", cfg.WorkerLockPath())
	}
	return lock.Unlock()
}

func parseStatusFilter(values []string) (map[queue.Status]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(map[queue.Status]bool, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q (use queued, processing, completed or failed)", value)
		}
		filter[status] = true
	}
	return filter, nil
}

func filterTasks(tasks []queue.Task, filter map[queue.Status]bool) []queue.Task {
	if len(filter) == 0 {
		return tasks
	}
	out := make([]queue.Task, 0, len(tasks))
	for _, task := range tasks {
		if filter[task.Status] {
			out = append(out, task)
		}
	}
	return out
}

func buildTaskRows(tasks []queue.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			task.ID,
			statusLabel(task.Status),
			task.RepoPath,
			task.BaseBranch,
			createdLabel(task),
			truncate(singleLine(task.Prompt), listPromptWidth),
		})
	}
	return rows
}

func createdLabel(task queue.Task) string {
	if ts, ok := task.CreatedTime(); ok {
		return ts.Local().Format("2006-01-02 15:04")
	}
	return task.CreatedAt
}
