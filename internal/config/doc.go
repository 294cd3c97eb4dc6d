// Package config loads, normalizes, and validates agent-todo configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the AGENT_TODO_RUNNER environment override. The
// Config type centralizes every knob the worker, the protocol shim, and the
// CLI need so queue, worktree, and log locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths and clear validation errors.
package config
