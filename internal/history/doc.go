// Package history persists a per-attempt download log in SQLite so failed
// and successful fetches survive process restarts and can be inspected from
// the CLI. It is advisory state only: the reconciliation files remain the
// source of truth for what still needs downloading.
package history
