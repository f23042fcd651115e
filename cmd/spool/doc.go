// Package main hosts the spool CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the foreground daemon, one-shot
// playlist reconciliation, state inspection, download history, and setup
// diagnostics. It centralizes configuration resolution and logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
