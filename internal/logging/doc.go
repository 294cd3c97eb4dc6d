// Package logging assembles structured slog loggers and formatting helpers used
// across agent-todo.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code can tag log
// lines with task and run identifiers. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
