// Package scheduler owns the polling loop that turns playlist state into
// downloads.
//
// Each tick is a small state machine: a non-blocking single-flight guard
// rejects overlap with a still-running dispatch, a rate check enforces the
// minimum spacing between successful downloads, and dispatch moves exactly
// one item through the reconciliation store and fetcher. Errors never
// escape a tick; transient failures are retried when the next tick fires.
package scheduler
