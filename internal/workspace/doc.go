// Package workspace provisions and disposes of the isolated git worktree a
// task runs in.
//
// Each task gets a dedicated branch named task-<id> checked out into
// <root>/<repository base name>-<id>, so tasks queued against the same
// repository never share a directory. git runs with the repository as its
// working directory and its output goes straight to the operator.
package workspace
