// Package worker processes the oldest queued task, one task per invocation.
//
// RunOnce marks the task processing before any external work, provisions a
// git worktree on a dedicated branch, runs the configured agent inside it,
// and resolves the task to completed or failed from the agent's exit status.
// Successful runs have their worktree removed; failed runs keep it for
// inspection and report the command that removes it.
//
// Only one worker may run per log directory. RunOnce holds an advisory lock
// for its whole duration and returns ErrWorkerBusy when another process
// already owns it.
package worker
