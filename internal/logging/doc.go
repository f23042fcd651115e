// Package logging builds the slog loggers used across spool.
//
// It offers a console handler that renders "TIMESTAMP LEVEL component:
// message key=value" lines for interactive use, a JSON handler for log
// shipping, attribute helpers with stable field names, and retention
// pruning for the per-run log files written by the daemon.
package logging
