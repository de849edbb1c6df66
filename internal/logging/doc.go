// Package logging assembles structured slog loggers shared by the daemon,
// the pipeline, and the CLI.
//
// It owns the console and JSON handlers, centralizes level plumbing, and
// exposes context helpers so pipeline code automatically tags log lines
// with document IDs, stage names, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
