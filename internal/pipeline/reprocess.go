package pipeline

import (
	"context"
	"fmt"

	"docflow/internal/documents"
	"docflow/internal/logging"
	"docflow/internal/stage"
	"docflow/internal/stageexec"
)

// ReprocessRequest names a document and the stage to restart it from.
type ReprocessRequest struct {
	DocumentID  int64
	TargetStage int
	// RequesterOwnerID must match the document's owner.
	RequesterOwnerID string
}

// Reprocess resets a document's stage records from the target stage onward
// and launches a background run from that stage. The document's in-flight
// slot is held from before the reset until the launched run settles, so a
// concurrent Reprocess or Launch cannot mutate the same stage records.
func (d *Driver) Reprocess(ctx context.Context, req ReprocessRequest) (*documents.Document, error) {
	if !stage.Valid(req.TargetStage) {
		return nil, fmt.Errorf("stage %d: %w", req.TargetStage, stage.ErrInvalidNumber)
	}

	doc, err := d.store.GetOwned(ctx, req.DocumentID, req.RequesterOwnerID)
	if err != nil {
		return nil, err
	}

	if !d.inflight.TryAcquire(req.DocumentID) {
		return nil, ErrAlreadyRunning
	}
	held := true
	defer func() {
		if held {
			d.inflight.Release(req.DocumentID)
		}
	}()

	processing, err := d.store.HasProcessingStage(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if processing {
		return nil, ErrAlreadyRunning
	}

	if req.TargetStage > 1 {
		previous, err := d.store.StageByNumber(ctx, req.DocumentID, req.TargetStage-1)
		if err != nil {
			return nil, err
		}
		if previous.Status != documents.StageCompleted {
			return nil, fmt.Errorf("stage %d: %w", req.TargetStage, stageexec.ErrOrderViolation)
		}
	}

	status := documents.StatusProcessing
	if err := d.store.Update(ctx, req.DocumentID, documents.DocumentUpdate{
		Status:       &status,
		CurrentStage: &req.TargetStage,
	}); err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}
	if err := d.store.ResetStagesFrom(ctx, req.DocumentID, req.TargetStage); err != nil {
		return nil, err
	}

	logger := logging.WithContext(logging.WithDocument(ctx, req.DocumentID), d.logger)
	logger.Info(
		"document reprocess requested",
		logging.String(logging.FieldEventType, "reprocess"),
		logging.Int("target_stage", req.TargetStage),
	)

	if err := d.launchHeld(req.DocumentID, req.TargetStage); err != nil {
		return nil, err
	}
	held = false

	return d.store.GetByID(ctx, doc.ID)
}
