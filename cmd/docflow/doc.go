// Package main hosts the docflow CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon: document submission and inspection, pipeline
// reprocessing, single-stage runs, status reporting, and configuration
// scaffolding. It centralizes configuration resolution, API address
// discovery, and owner identification so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
