package stageexec

import "errors"

var (
	// ErrOrderViolation indicates an attempt to run a stage whose predecessor
	// has not completed.
	ErrOrderViolation = errors.New("previous stage not completed")
	// ErrAlreadyTerminal indicates the stage record is already completed or
	// failed and must be reset before it can run again.
	ErrAlreadyTerminal = errors.New("stage already finished")
	// ErrStageFailed wraps analyzer errors after the failure has been
	// recorded on the stage record and the document.
	ErrStageFailed = errors.New("stage failed")
	// ErrTimeout is recorded when an analyzer exceeds the configured bound.
	ErrTimeout = errors.New("stage timed out")
)
