package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"agenttodo/internal/preflight"
	"agenttodo/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and readiness checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Configuration", colorize)
			configKind, configDetail := statusInfo, ctx.configPath
			if !ctx.configExists {
				configKind = statusWarn
				configDetail += " (not found, using defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config file", configKind, configDetail, colorize),
				renderStatusLine("Queue file", statusInfo, cfg.Paths.QueueFile, colorize),
				renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize),
				"",
			)

			lines = append(lines, renderSectionHeader("Readiness", colorize)...)
			results := preflight.RunAll(cfg)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if preflight.Passed(results) {
				lines = append(lines, renderStatusLine("Ready", statusOK, "worker can run", colorize))
			} else {
				lines = append(lines, renderStatusLine("Ready", statusError, "fix the failed checks before running the worker", colorize))
			}
			lines = append(lines, "")
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}

			return ctx.withStore(func(store *queue.Store) error {
				tasks, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Count"},
					buildStatusCountRows(tasks),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func buildStatusCountRows(tasks []queue.Task) [][]string {
	counts := make(map[queue.Status]int)
	for _, task := range tasks {
		counts[task.Status]++
	}
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		if counts[status] == 0 {
			continue
		}
		rows = append(rows, []string{statusLabel(status), strconv.Itoa(counts[status])})
	}
	return rows
}
