package documents

import (
	"database/sql"
	"errors"
	"time"
)

const documentColumns = "id, owner_id, filename, original_name, file_size, mime_type, status, document_type, confidence, extracted_text, metadata_json, current_stage, created_at, updated_at"

const stageColumns = "id, document_id, stage, status, started_at, completed_at, error_message, details_json, created_at"

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		id           int64
		ownerID      string
		filename     string
		originalName string
		fileSize     sql.NullInt64
		mimeType     sql.NullString
		statusStr    string
		docType      sql.NullString
		confidence   sql.NullInt64
		extracted    sql.NullString
		metadata     sql.NullString
		currentStage int
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&filename,
		&originalName,
		&fileSize,
		&mimeType,
		&statusStr,
		&docType,
		&confidence,
		&extracted,
		&metadata,
		&currentStage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:            id,
		OwnerID:       ownerID,
		Filename:      filename,
		OriginalName:  originalName,
		FileSize:      fileSize.Int64,
		MimeType:      mimeType.String,
		Status:        Status(statusStr),
		DocumentType:  docType.String,
		ExtractedText: extracted.String,
		MetadataJSON:  metadata.String,
		CurrentStage:  currentStage,
	}
	if confidence.Valid {
		doc.Confidence = int(confidence.Int64)
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		doc.UpdatedAt = updated
	}
	return doc, nil
}

func scanStageRecord(scanner interface{ Scan(dest ...any) error }) (*StageRecord, error) {
	var (
		id           int64
		documentID   int64
		stage        int
		statusStr    string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		errorMessage sql.NullString
		details      sql.NullString
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&documentID,
		&stage,
		&statusStr,
		&startedRaw,
		&completedRaw,
		&errorMessage,
		&details,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	record := &StageRecord{
		ID:           id,
		DocumentID:   documentID,
		Stage:        stage,
		Status:       StageStatus(statusStr),
		ErrorMessage: errorMessage.String,
		DetailsJSON:  details.String,
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CompletedAt = &completed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
