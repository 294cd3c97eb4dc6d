// Package mcp exposes the task queue to agent clients as a Model Context
// Protocol server speaking newline-delimited JSON-RPC 2.0 over stdio.
//
// Three tools are offered: queue_task, list_tasks and remove_task. The
// server only writes to the queue; processing stays with the worker.
package mcp
