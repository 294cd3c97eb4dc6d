// Package history keeps a SQLite log of worker runs.
//
// Every task the worker picks up gets one row, opened when provisioning
// starts and closed with the outcome once the runner exits (or provisioning
// fails). The JSON queue file stays the source of truth for task status;
// history answers "when did this run, and how did it end" after the queue
// entry has been removed.
package history
