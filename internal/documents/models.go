package documents

import (
	"strings"
	"time"
)

// Status summarizes a document's overall pipeline progress.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StageStatus represents the lifecycle of a single stage record.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// InterruptedMessage is the error message recorded on stage records that were
// mid-flight when the daemon stopped.
const InterruptedMessage = "interrupted by daemon shutdown"

// ParseStatus converts a string into a known document Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return normalized, true
	}
	return "", false
}

// Document is a tracked file moving through the four-stage pipeline.
type Document struct {
	ID            int64
	OwnerID       string
	Filename      string
	OriginalName  string
	FileSize      int64
	MimeType      string
	Status        Status
	DocumentType  string
	Confidence    int // 0 when the classify stage has not run
	ExtractedText string
	MetadataJSON  string
	CurrentStage  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StageRecord tracks one stage's lifecycle for one document. Exactly four
// records exist per document, numbered 1 through 4, created with it.
type StageRecord struct {
	ID           int64
	DocumentID   int64
	Stage        int
	Status       StageStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	DetailsJSON  string
	CreatedAt    time.Time
}

// Terminal reports whether the record has reached a final state.
func (r *StageRecord) Terminal() bool {
	return r.Status == StageCompleted || r.Status == StageFailed
}

// DocumentUpdate describes a partial document mutation. Nil fields are left
// untouched; updated_at is always bumped.
type DocumentUpdate struct {
	Status        *Status
	CurrentStage  *int
	DocumentType  *string
	Confidence    *int
	ExtractedText *string
	MetadataJSON  *string
}

// StageUpdate describes a partial stage record mutation. Nil fields are left
// untouched. ClearError resets error_message to NULL regardless of ErrorMessage.
type StageUpdate struct {
	Status       *StageStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
	DetailsJSON  *string
	ClearError   bool
}

// Stats aggregates a single owner's documents by status.
type Stats struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
}

// Health captures diagnostic information about the store database.
type Health struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	TablesPresent    bool     `json:"tablesPresent"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalDocuments   int      `json:"totalDocuments"`
	MissingTables    []string `json:"missingTables,omitempty"`
	Error            string   `json:"error,omitempty"`
}

func statusPtr(s Status) *Status          { return &s }
func stagePtr(s StageStatus) *StageStatus { return &s }
func intPtr(v int) *int                   { return &v }
func strPtr(v string) *string             { return &v }
func timePtr(t time.Time) *time.Time      { return &t }
