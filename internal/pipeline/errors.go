package pipeline

import "errors"

var (
	// ErrAlreadyRunning indicates the document already has a live pipeline run.
	ErrAlreadyRunning = errors.New("document is already being processed")
	// ErrNotRunning indicates the driver has not been started.
	ErrNotRunning = errors.New("pipeline driver is not running")
)
