// Package logs tails the agent-todo log file with bounded memory.
//
// It backs `agent-todo logs`: print the last N lines, optionally only those
// mentioning one task, then keep following appended lines until the context
// is canceled. Follow mode polls, so it works on any filesystem and survives
// the file being truncated.
package logs
