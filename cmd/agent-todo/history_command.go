package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agenttodo/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var taskID string
	var outcome string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent worker runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{TaskID: taskID, Limit: limit}
			if outcome != "" {
				parsed, err := history.ParseOutcome(outcome)
				if err != nil {
					return err
				}
				filter.Outcome = parsed
			}
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					if runs == nil {
						runs = []history.Run{}
					}
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				table := renderTable(
					[]string{"Started", "Task", "Outcome", "Duration", "Worktree", "Error"},
					buildRunRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Only show runs of this task")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only show runs with this outcome (running, completed, failed, provision_failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildRunRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if d := run.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.TaskID,
			outcomeLabel(string(run.Outcome)),
			duration,
			run.WorkspacePath,
			truncate(singleLine(run.Error), 50),
		})
	}
	return rows
}
