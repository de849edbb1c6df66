// Package documents persists documents and their per-stage records in SQLite
// and exposes helpers for driving their lifecycle.
//
// The Store manages the database connection, schema migrations, stats
// queries, and the atomic mutations the pipeline relies on: creating a
// document together with its four stage records, partial document and stage
// updates, the reprocess reset, and interrupted-run recovery at startup.
//
// Treat this package as the single source of truth for document state; when
// you add new statuses or fields, update the migration SQL alongside them.
package documents
