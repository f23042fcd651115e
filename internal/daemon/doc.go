// Package daemon assembles the playlist store, download pipeline, and
// scheduler into a single long-running process guarded by a lock file.
package daemon
