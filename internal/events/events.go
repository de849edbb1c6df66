// Package events fans document lifecycle notifications out to subscribers.
// Publishing never blocks; subscribers with a full buffer miss events.
package events

import (
	"fmt"
	"time"
)

// Kind identifies what happened to a document.
type Kind string

const (
	KindCreated        Kind = "created"
	KindStageStarted   Kind = "stage_started"
	KindStageCompleted Kind = "stage_completed"
	KindStageFailed    Kind = "stage_failed"
	KindCompleted      Kind = "completed"
)

// Event describes one document lifecycle change.
type Event struct {
	DocumentID int64     `json:"documentId"`
	Kind       Kind      `json:"kind"`
	Stage      int       `json:"stage,omitempty"`
	UpdateType string    `json:"updateType"`
	Timestamp  time.Time `json:"timestamp"`
}

// New builds an event for a document-level change (created, completed).
func New(documentID int64, kind Kind) Event {
	return Event{
		DocumentID: documentID,
		Kind:       kind,
		UpdateType: string(kind),
		Timestamp:  time.Now().UTC(),
	}
}

// ForStage builds an event for a stage-level change. The update type is
// qualified with the stage number, e.g. "stage_2_completed".
func ForStage(documentID int64, kind Kind, stageNumber int) Event {
	suffix := ""
	switch kind {
	case KindStageStarted:
		suffix = "started"
	case KindStageCompleted:
		suffix = "completed"
	case KindStageFailed:
		suffix = "failed"
	default:
		return New(documentID, kind)
	}
	return Event{
		DocumentID: documentID,
		Kind:       kind,
		Stage:      stageNumber,
		UpdateType: fmt.Sprintf("stage_%d_%s", stageNumber, suffix),
		Timestamp:  time.Now().UTC(),
	}
}
