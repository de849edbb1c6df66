// Package daemon ties the document store, pipeline driver, event hub, and
// HTTP API together into a single-instance background service.
package daemon
