// Package preflight provides readiness checks for the filesystem paths and
// external binaries agent-todo depends on.
//
// The CLI "agent-todo status" command runs RunAll to show whether the
// worker could process a task right now. Checks never modify anything.
package preflight
