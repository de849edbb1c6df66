// Package pipeline drives documents through the four processing stages and
// guards against concurrent runs for the same document.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docflow/internal/config"
	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/logging"
	"docflow/internal/stage"
	"docflow/internal/stageexec"
)

// Driver advances documents through the pipeline. Launch runs detach onto a
// background goroutine tied to the driver's lifetime; Stop cancels them and
// waits for completion.
type Driver struct {
	store     *documents.Store
	hub       *events.Hub
	analyzers stage.AnalyzerSet
	logger    *slog.Logger
	timeout   time.Duration

	inflight *inflight

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDriver constructs a pipeline driver.
func NewDriver(cfg *config.Config, store *documents.Store, hub *events.Hub, analyzers stage.AnalyzerSet, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Driver{
		store:     store,
		hub:       hub,
		analyzers: analyzers,
		logger:    logger.With(logging.String(logging.FieldComponent, "pipeline")),
		timeout:   time.Duration(cfg.Pipeline.StageTimeoutSeconds) * time.Second,
		inflight:  newInflight(),
	}
}

// Start prepares the driver for background runs. The supplied context bounds
// every detached run.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("pipeline driver already running")
	}
	d.baseCtx, d.cancel = context.WithCancel(ctx)
	d.running = true
	return nil
}

// Stop cancels in-flight runs and waits for them to settle.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

// ActiveRuns reports how many documents are currently being advanced.
func (d *Driver) ActiveRuns() int {
	return d.inflight.Count()
}

// Running reports whether a document has a live pipeline run.
func (d *Driver) Running(documentID int64) bool {
	return d.inflight.Active(documentID)
}

// Launch starts advancing the document from fromStage on a background
// goroutine. It returns ErrAlreadyRunning synchronously when the document
// already has a live run.
func (d *Driver) Launch(documentID int64, fromStage int) error {
	if !stage.Valid(fromStage) {
		return stage.ErrInvalidNumber
	}
	if !d.inflight.TryAcquire(documentID) {
		return ErrAlreadyRunning
	}
	if err := d.launchHeld(documentID, fromStage); err != nil {
		d.inflight.Release(documentID)
		return err
	}
	return nil
}

// launchHeld starts the background run for a document whose in-flight slot
// the caller already holds. On success the goroutine owns the slot and
// releases it when the run settles.
func (d *Driver) launchHeld(documentID int64, fromStage int) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrNotRunning
	}
	baseCtx := d.baseCtx
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inflight.Release(documentID)
		d.advance(baseCtx, documentID, fromStage)
	}()
	return nil
}

// Advance runs the pipeline synchronously from fromStage through the final
// stage, stopping at the first failure. Callers get ErrAlreadyRunning when a
// background run is live for the document.
func (d *Driver) Advance(ctx context.Context, documentID int64, fromStage int) error {
	if !stage.Valid(fromStage) {
		return stage.ErrInvalidNumber
	}
	if !d.inflight.TryAcquire(documentID) {
		return ErrAlreadyRunning
	}
	defer d.inflight.Release(documentID)
	return d.advance(ctx, documentID, fromStage)
}

// RunSingle executes exactly one stage synchronously and returns the final
// stage record.
func (d *Driver) RunSingle(ctx context.Context, documentID int64, stageNumber int) (*documents.StageRecord, error) {
	if !d.inflight.TryAcquire(documentID) {
		return nil, ErrAlreadyRunning
	}
	defer d.inflight.Release(documentID)

	runCtx := logging.WithCorrelationID(ctx, uuid.NewString())
	return stageexec.Run(runCtx, d.options(), documentID, stageNumber)
}

func (d *Driver) advance(ctx context.Context, documentID int64, fromStage int) error {
	runCtx := logging.WithCorrelationID(logging.WithDocument(ctx, documentID), uuid.NewString())
	logger := logging.WithContext(runCtx, d.logger)

	logger.Info(
		"pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("from_stage", fromStage),
	)

	for number := fromStage; number <= stage.Count; number++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := stageexec.Run(runCtx, d.options(), documentID, number); err != nil {
			if errors.Is(err, stageexec.ErrStageFailed) {
				logger.Info(
					"pipeline run stopped at failed stage",
					logging.String(logging.FieldEventType, "run_failed"),
					logging.Int(logging.FieldStageNumber, number),
				)
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Error(
				"pipeline run aborted",
				logging.Int(logging.FieldStageNumber, number),
				logging.Error(err),
			)
			return err
		}
	}

	logger.Info(
		"pipeline run completed",
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return nil
}

func (d *Driver) options() stageexec.Options {
	return stageexec.Options{
		Logger:    d.logger,
		Store:     d.store,
		Events:    d.hub,
		Analyzers: d.analyzers,
		Timeout:   d.timeout,
	}
}
