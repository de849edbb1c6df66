// Package api exposes document pipeline operations as transport-friendly
// DTOs, shared by the HTTP server and the CLI client.
package api

import (
	"encoding/json"
	"time"

	"docflow/internal/documents"
	"docflow/internal/stage"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Document describes a tracked document in a transport-friendly format.
type Document struct {
	ID            int64           `json:"id"`
	OwnerID       string          `json:"ownerId"`
	Filename      string          `json:"filename"`
	OriginalName  string          `json:"originalName"`
	FileSize      int64           `json:"fileSize"`
	MimeType      string          `json:"mimeType,omitempty"`
	Status        string          `json:"status"`
	DocumentType  string          `json:"documentType,omitempty"`
	Confidence    int             `json:"confidence,omitempty"`
	ExtractedText string          `json:"extractedText,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CurrentStage  int             `json:"currentStage"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
}

// StageRecord describes one processing stage of a document.
type StageRecord struct {
	ID           int64           `json:"id"`
	DocumentID   int64           `json:"documentId"`
	Stage        int             `json:"stage"`
	StageName    string          `json:"stageName"`
	Status       string          `json:"status"`
	StartedAt    string          `json:"startedAt,omitempty"`
	CompletedAt  string          `json:"completedAt,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

// DocumentWithStages pairs a document with its stage records.
type DocumentWithStages struct {
	Document
	Stages []StageRecord `json:"stages"`
}

// SubmitRequest registers a new document with the pipeline.
type SubmitRequest struct {
	Filename     string          `json:"filename"`
	OriginalName string          `json:"originalName,omitempty"`
	FileSize     int64           `json:"fileSize,omitempty"`
	MimeType     string          `json:"mimeType,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// ReprocessRequest restarts a document from the given stage.
type ReprocessRequest struct {
	Stage int `json:"stage"`
}

// DocumentListResponse wraps a collection of documents.
type DocumentListResponse struct {
	Documents []DocumentWithStages `json:"documents"`
}

// StatsResponse reports per-owner document counts.
type StatsResponse struct {
	Stats documents.Stats `json:"stats"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	DBPath       string           `json:"dbPath"`
	LockFilePath string           `json:"lockFilePath"`
	ActiveRuns   int              `json:"activeRuns"`
	Subscribers  int              `json:"subscribers"`
	Database     documents.Health `json:"database"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromDocument converts a stored document to its DTO.
func FromDocument(doc *documents.Document) Document {
	out := Document{
		ID:            doc.ID,
		OwnerID:       doc.OwnerID,
		Filename:      doc.Filename,
		OriginalName:  doc.OriginalName,
		FileSize:      doc.FileSize,
		MimeType:      doc.MimeType,
		Status:        string(doc.Status),
		DocumentType:  doc.DocumentType,
		Confidence:    doc.Confidence,
		ExtractedText: doc.ExtractedText,
		CurrentStage:  doc.CurrentStage,
		CreatedAt:     formatTime(doc.CreatedAt),
		UpdatedAt:     formatTime(doc.UpdatedAt),
	}
	if doc.MetadataJSON != "" {
		out.Metadata = json.RawMessage(doc.MetadataJSON)
	}
	return out
}

// FromStageRecord converts a stored stage record to its DTO.
func FromStageRecord(record *documents.StageRecord) StageRecord {
	out := StageRecord{
		ID:           record.ID,
		DocumentID:   record.DocumentID,
		Stage:        record.Stage,
		StageName:    stage.Name(record.Stage),
		Status:       string(record.Status),
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    formatTime(record.CreatedAt),
	}
	if record.StartedAt != nil {
		out.StartedAt = formatTime(*record.StartedAt)
	}
	if record.CompletedAt != nil {
		out.CompletedAt = formatTime(*record.CompletedAt)
	}
	if record.DetailsJSON != "" {
		out.Details = json.RawMessage(record.DetailsJSON)
	}
	return out
}

// FromStageRecords converts a slice of stage records.
func FromStageRecords(records []*documents.StageRecord) []StageRecord {
	if len(records) == 0 {
		return nil
	}
	out := make([]StageRecord, 0, len(records))
	for _, record := range records {
		out = append(out, FromStageRecord(record))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
