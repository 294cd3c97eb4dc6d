package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:   "agent-todo [-- runner args...]",
		Short: "Queue coding tasks and run them one at a time in isolated git worktrees",
		Long: `agent-todo keeps a queue of coding tasks. Each run of the worker takes the
oldest queued task, checks out a fresh branch in its own git worktree, and
hands the prompt to the configured runner.

Without a subcommand agent-todo runs the worker once. Arguments after "--"
are passed through to the runner.`,
		Version:       version,
		Args:          requireDashForRunnerArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, ctx, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newServerCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// requireDashForRunnerArgs keeps typos of subcommand names from starting the
// worker: bare arguments on the root command are only accepted after "--".
func requireDashForRunnerArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && cmd.ArgsLenAtDash() != 0 {
		return fmt.Errorf("unknown command %q for %q (pass runner arguments after --)", args[0], cmd.CommandPath())
	}
	return nil
}
