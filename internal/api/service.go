package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/pipeline"
	"docflow/internal/stage"
)

// ErrValidation indicates a malformed request payload.
var ErrValidation = errors.New("invalid request")

// DocumentService exposes document pipeline operations against the store and
// the driver, with ownership enforced on every per-document call.
type DocumentService struct {
	store  *documents.Store
	driver *pipeline.Driver
	hub    *events.Hub
}

// NewDocumentService constructs a DocumentService. The hub may be nil when
// notifications are not needed.
func NewDocumentService(store *documents.Store, driver *pipeline.Driver, hub *events.Hub) *DocumentService {
	return &DocumentService{store: store, driver: driver, hub: hub}
}

// Submit registers a document and launches its pipeline run.
func (s *DocumentService) Submit(ctx context.Context, ownerID string, req SubmitRequest) (*DocumentWithStages, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if req.FileSize < 0 {
		return nil, fmt.Errorf("%w: file size must not be negative", ErrValidation)
	}
	metadata := ""
	if len(req.Metadata) > 0 {
		if !json.Valid(req.Metadata) {
			return nil, fmt.Errorf("%w: metadata must be valid JSON", ErrValidation)
		}
		metadata = string(req.Metadata)
	}

	doc, err := s.store.Create(ctx, documents.NewDocument{
		OwnerID:      ownerID,
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		FileSize:     req.FileSize,
		MimeType:     req.MimeType,
		MetadataJSON: metadata,
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(events.New(doc.ID, events.KindCreated))

	if err := s.driver.Launch(doc.ID, stage.Ingest); err != nil {
		return nil, err
	}

	return s.describe(ctx, doc)
}

// Document fetches one document with its stage records.
func (s *DocumentService) Document(ctx context.Context, ownerID string, id int64) (*DocumentWithStages, error) {
	doc, err := s.store.GetOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, doc)
}

// List returns the owner's documents with stage records, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]DocumentWithStages, error) {
	docs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentWithStages, 0, len(docs))
	for _, doc := range docs {
		described, err := s.describe(ctx, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *described)
	}
	return out, nil
}

// Stats returns the owner's document counts by status.
func (s *DocumentService) Stats(ctx context.Context, ownerID string) (documents.Stats, error) {
	return s.store.StatsByOwner(ctx, ownerID)
}

// Delete removes a document. Deletion is refused while a run is live.
func (s *DocumentService) Delete(ctx context.Context, ownerID string, id int64) error {
	if _, err := s.store.GetOwned(ctx, id, ownerID); err != nil {
		return err
	}
	if s.driver.Running(id) {
		return pipeline.ErrAlreadyRunning
	}
	return s.store.Delete(ctx, id)
}

// Reprocess restarts the document from the requested stage.
func (s *DocumentService) Reprocess(ctx context.Context, ownerID string, id int64, req ReprocessRequest) (*DocumentWithStages, error) {
	doc, err := s.driver.Reprocess(ctx, pipeline.ReprocessRequest{
		DocumentID:       id,
		TargetStage:      req.Stage,
		RequesterOwnerID: ownerID,
	})
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, doc)
}

// RunStage executes exactly one stage synchronously and returns its record.
func (s *DocumentService) RunStage(ctx context.Context, ownerID string, id int64, stageNumber int) (*StageRecord, error) {
	if _, err := s.store.GetOwned(ctx, id, ownerID); err != nil {
		return nil, err
	}
	record, err := s.driver.RunSingle(ctx, id, stageNumber)
	if err != nil {
		return nil, err
	}
	dto := FromStageRecord(record)
	return &dto, nil
}

func (s *DocumentService) describe(ctx context.Context, doc *documents.Document) (*DocumentWithStages, error) {
	records, err := s.store.Stages(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return &DocumentWithStages{
		Document: FromDocument(doc),
		Stages:   FromStageRecords(records),
	}, nil
}
