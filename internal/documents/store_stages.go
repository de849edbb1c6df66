package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stages returns a document's stage records ordered by stage number.
func (s *Store) Stages(ctx context.Context, documentID int64) ([]*StageRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+stageColumns+` FROM processing_stages WHERE document_id = ? ORDER BY stage ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var records []*StageRecord
	for rows.Next() {
		record, err := scanStageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// StageByNumber fetches one stage record of a document.
func (s *Store) StageByNumber(ctx context.Context, documentID int64, stage int) (*StageRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+stageColumns+` FROM processing_stages WHERE document_id = ? AND stage = ?`,
		documentID,
		stage,
	)
	record, err := scanStageRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d stage %d: %w", documentID, stage, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return record, nil
}

// UpdateStage applies a partial mutation to a stage record.
func (s *Store) UpdateStage(ctx context.Context, stageID int64, update StageUpdate) error {
	var assignments []string
	var args []any

	if update.Status != nil {
		assignments = append(assignments, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.StartedAt != nil {
		assignments = append(assignments, "started_at = ?")
		args = append(args, nullableTime(update.StartedAt))
	}
	if update.CompletedAt != nil {
		assignments = append(assignments, "completed_at = ?")
		args = append(args, nullableTime(update.CompletedAt))
	}
	if update.ClearError {
		assignments = append(assignments, "error_message = NULL")
	} else if update.ErrorMessage != nil {
		assignments = append(assignments, "error_message = ?")
		args = append(args, nullableString(*update.ErrorMessage))
	}
	if update.DetailsJSON != nil {
		assignments = append(assignments, "details_json = ?")
		args = append(args, nullableString(*update.DetailsJSON))
	}
	if len(assignments) == 0 {
		return nil
	}

	args = append(args, stageID)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE processing_stages SET `+strings.Join(assignments, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stage rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("stage record %d: %w", stageID, ErrNotFound)
	}
	return nil
}

// ResetStagesFrom returns every stage record numbered fromStage or higher to
// pending with cleared timestamps, error, and details.
func (s *Store) ResetStagesFrom(ctx context.Context, documentID int64, fromStage int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE processing_stages
         SET status = ?, started_at = NULL, completed_at = NULL, error_message = NULL, details_json = NULL
         WHERE document_id = ? AND stage >= ?`,
		StagePending,
		documentID,
		fromStage,
	)
	if err != nil {
		return fmt.Errorf("reset stages: %w", err)
	}
	return nil
}

// HasProcessingStage reports whether any of the document's stage records is
// currently marked processing.
func (s *Store) HasProcessingStage(ctx context.Context, documentID int64) (bool, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM processing_stages WHERE document_id = ? AND status = ?`,
		documentID,
		StageProcessing,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count processing stages: %w", err)
	}
	return count > 0, nil
}

// MarkStageProcessing transitions a stage record to processing and stamps
// started_at.
func (s *Store) MarkStageProcessing(ctx context.Context, stageID int64) error {
	now := time.Now().UTC()
	return s.UpdateStage(ctx, stageID, StageUpdate{
		Status:     stagePtr(StageProcessing),
		StartedAt:  timePtr(now),
		ClearError: true,
	})
}

// MarkStageCompleted transitions a stage record to completed with its details
// payload.
func (s *Store) MarkStageCompleted(ctx context.Context, stageID int64, detailsJSON string) error {
	now := time.Now().UTC()
	return s.UpdateStage(ctx, stageID, StageUpdate{
		Status:      stagePtr(StageCompleted),
		CompletedAt: timePtr(now),
		DetailsJSON: strPtr(detailsJSON),
		ClearError:  true,
	})
}

// MarkStageFailed transitions a stage record to failed and records the error
// message.
func (s *Store) MarkStageFailed(ctx context.Context, stageID int64, message string) error {
	now := time.Now().UTC()
	return s.UpdateStage(ctx, stageID, StageUpdate{
		Status:       stagePtr(StageFailed),
		CompletedAt:  timePtr(now),
		ErrorMessage: strPtr(message),
	})
}
