// Package queue persists agent tasks in a single JSON file and exposes the
// operations producers and the worker use to drive their lifecycle.
//
// Every mutation loads the whole collection, changes it, and rewrites the
// whole file. Insertion order is the FIFO order; timestamps are never
// compared. Read-modify-write cycles hold an advisory lock on a sibling
// ".lock" file so the protocol shim, the CLI, and the worker can share one
// queue file without losing updates.
//
// An unreadable or corrupt queue file loads as an empty collection so
// producers and the worker keep working. The store logs a warning and copies
// the bad file aside before anything can overwrite it.
package queue
