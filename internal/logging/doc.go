// Package logging assembles structured slog loggers and formatting helpers used
// across tracktap.
//
// It owns the console and JSON handlers, routes records to stdout and an
// optional size-rotated log file, and exposes context-aware helpers so capture
// code can tag log lines with run IDs and track positions. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
