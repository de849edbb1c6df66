// Package stageexec runs a single pipeline stage against a document and
// applies the persistence and notification transitions around it.
package stageexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/logging"
	"docflow/internal/stage"
)

// Options controls stage execution behavior.
type Options struct {
	Logger    *slog.Logger
	Store     *documents.Store
	Events    *events.Hub
	Analyzers stage.AnalyzerSet
	// Timeout bounds a single analyzer invocation. Zero means no bound.
	Timeout time.Duration
}

// Run executes one stage for a document. Preconditions: the stage record must
// not be terminal, and for stages past the first the predecessor must have
// completed. Analyzer failures, panics, and timeouts are recorded on the
// stage record and fail the document; those return an error wrapping
// ErrStageFailed. Cancellation of ctx itself leaves the record processing for
// startup recovery to reconcile.
func Run(ctx context.Context, opts Options, documentID int64, stageNumber int) (*documents.StageRecord, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if !stage.Valid(stageNumber) {
		return nil, fmt.Errorf("stage %d: %w", stageNumber, stage.ErrInvalidNumber)
	}
	analyzer, ok := opts.Analyzers[stageNumber]
	if !ok {
		return nil, fmt.Errorf("no analyzer registered for stage %d", stageNumber)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	stageCtx := logging.WithStage(logging.WithDocument(ctx, documentID), stage.Name(stageNumber))
	stageLogger := logging.WithContext(stageCtx, logger)

	doc, err := opts.Store.GetByID(stageCtx, documentID)
	if err != nil {
		return nil, err
	}
	record, err := opts.Store.StageByNumber(stageCtx, documentID, stageNumber)
	if err != nil {
		return nil, err
	}
	if record.Terminal() {
		return nil, fmt.Errorf("stage %d: %w", stageNumber, ErrAlreadyTerminal)
	}
	if stageNumber > 1 {
		previous, err := opts.Store.StageByNumber(stageCtx, documentID, stageNumber-1)
		if err != nil {
			return nil, err
		}
		if previous.Status != documents.StageCompleted {
			return nil, fmt.Errorf("stage %d: %w", stageNumber, ErrOrderViolation)
		}
	}

	update := documents.DocumentUpdate{}
	status := documents.StatusProcessing
	if doc.Status != documents.StatusProcessing {
		update.Status = &status
	}
	if doc.CurrentStage < stageNumber {
		update.CurrentStage = &stageNumber
	}
	if update.Status != nil || update.CurrentStage != nil {
		if err := opts.Store.Update(stageCtx, documentID, update); err != nil {
			return nil, fmt.Errorf("persist processing transition: %w", err)
		}
	}
	if err := opts.Store.MarkStageProcessing(stageCtx, record.ID); err != nil {
		return nil, fmt.Errorf("persist stage start: %w", err)
	}
	opts.Events.Publish(events.ForStage(documentID, events.KindStageStarted, stageNumber))

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int(logging.FieldStageNumber, stageNumber),
		logging.String("filename", doc.Filename),
	)

	outcome, analyzeErr := analyze(stageCtx, analyzer, doc, opts.Timeout)
	if analyzeErr != nil {
		if ctx.Err() != nil {
			// Daemon shutdown, not a stage failure. Leave the record
			// processing; recovery handles it on the next start.
			return nil, ctx.Err()
		}
		return nil, handleFailure(stageCtx, stageLogger, opts, documentID, record, stageNumber, analyzeErr)
	}

	detailsJSON := ""
	if outcome != nil && len(outcome.Details) > 0 {
		raw, err := json.Marshal(outcome.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal stage details: %w", err)
		}
		detailsJSON = string(raw)
	}

	docUpdate := documents.DocumentUpdate{}
	if outcome != nil {
		if outcome.ExtractedText != "" {
			docUpdate.ExtractedText = &outcome.ExtractedText
		}
		if outcome.DocumentType != "" {
			docUpdate.DocumentType = &outcome.DocumentType
			docUpdate.Confidence = &outcome.Confidence
		}
	}
	if stageNumber == stage.Count {
		completed := documents.StatusCompleted
		docUpdate.Status = &completed
	}
	// The stage row turns terminal before the document does, so a reader
	// never sees a completed document with an unfinished final stage.
	if err := opts.Store.MarkStageCompleted(stageCtx, record.ID, detailsJSON); err != nil {
		return nil, fmt.Errorf("persist stage completion: %w", err)
	}
	if docUpdate != (documents.DocumentUpdate{}) {
		if err := opts.Store.Update(stageCtx, documentID, docUpdate); err != nil {
			return nil, fmt.Errorf("persist stage result: %w", err)
		}
	}

	opts.Events.Publish(events.ForStage(documentID, events.KindStageCompleted, stageNumber))
	if stageNumber == stage.Count {
		opts.Events.Publish(events.New(documentID, events.KindCompleted))
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int(logging.FieldStageNumber, stageNumber),
	)

	return opts.Store.StageByNumber(stageCtx, documentID, stageNumber)
}

func analyze(ctx context.Context, analyzer stage.Analyzer, doc *documents.Document, timeout time.Duration) (outcome *stage.Outcome, err error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		outcome *stage.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		outcome, err := analyzer.Analyze(runCtx, doc)
		done <- result{outcome: outcome, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && runCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrTimeout
		}
		return res.outcome, res.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, documentID int64, record *documents.StageRecord, stageNumber int, stageErr error) error {
	message := stageErr.Error()

	if err := opts.Store.MarkStageFailed(ctx, record.ID, message); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	failed := documents.StatusFailed
	if err := opts.Store.Update(ctx, documentID, documents.DocumentUpdate{Status: &failed}); err != nil {
		logger.Error("failed to persist document failure", logging.Error(err))
	}

	opts.Events.Publish(events.ForStage(documentID, events.KindStageFailed, stageNumber))

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Int(logging.FieldStageNumber, stageNumber),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	return fmt.Errorf("%w: %s", ErrStageFailed, message)
}
