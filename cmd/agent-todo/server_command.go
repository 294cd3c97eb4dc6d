package main

import (
	"github.com/spf13/cobra"

	"agenttodo/internal/mcp"
	"agenttodo/internal/queue"
)

func newServerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the queue to agent clients over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
queue_task, list_tasks and remove_task tools. Logs go to stderr and the log
file so stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				server := mcp.NewServer(store, mcp.WithLogger(ctx.loggerValue()), mcp.WithVersion(version))
				return server.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}
