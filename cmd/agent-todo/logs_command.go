package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agenttodo/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var taskID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the worker log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := logs.Options{
				Lines:  lines,
				Follow: follow,
				Match:  logs.ContainsMatcher(taskID),
			}
			return logs.Tail(cmd.Context(), cfg.LogPath(), opts, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&taskID, "task", "", "Only show lines mentioning this task")
	return cmd
}
