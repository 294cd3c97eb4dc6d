// Package main hosts the agent-todo CLI entrypoint and command graph.
//
// Running agent-todo with no subcommand processes the oldest queued task.
// The remaining commands manage the queue file directly, serve it to agent
// clients over MCP, and report run history and readiness. Configuration is
// resolved once per invocation through commandContext so subcommands only
// deal with presentation.
package main
