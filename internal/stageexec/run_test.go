package stageexec_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"docflow/internal/analyzers"
	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/stage"
	"docflow/internal/stageexec"
	"docflow/internal/testsupport"
)

func newOptions(t *testing.T, set stage.AnalyzerSet) (stageexec.Options, *documents.Store, *events.Hub) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub(16)
	t.Cleanup(hub.Close)
	if set == nil {
		set = analyzers.New(cfg)
	}
	return stageexec.Options{
		Store:     store,
		Events:    hub,
		Analyzers: set,
		Timeout:   5 * time.Second,
	}, store, hub
}

func staticAnalyzers(outcome *stage.Outcome, err error) stage.AnalyzerSet {
	set := stage.AnalyzerSet{}
	for _, def := range stage.All() {
		set[def.Number] = stage.AnalyzerFunc(func(context.Context, *documents.Document) (*stage.Outcome, error) {
			return outcome, err
		})
	}
	return set
}

func drainEvents(sub *events.Subscriber) []events.Event {
	var out []events.Event
	for {
		select {
		case event := <-sub.Events():
			out = append(out, event)
		default:
			return out
		}
	}
}

func TestRunCompletesStage(t *testing.T) {
	opts, store, hub := newOptions(t, nil)
	sub := hub.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "invoice.pdf")

	record, err := stageexec.Run(ctx, opts, doc.ID, stage.Ingest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if record.Status != documents.StageCompleted {
		t.Fatalf("expected completed, got %s", record.Status)
	}
	if record.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if record.DetailsJSON == "" {
		t.Fatal("expected stage details to be recorded")
	}

	got := drainEvents(sub)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].UpdateType != "stage_1_started" || got[1].UpdateType != "stage_1_completed" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestRunFullPipelineCompletesDocument(t *testing.T) {
	opts, store, hub := newOptions(t, nil)
	sub := hub.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "contract.pdf")

	for _, def := range stage.All() {
		if _, err := stageexec.Run(ctx, opts, doc.ID, def.Number); err != nil {
			t.Fatalf("Run stage %d failed: %v", def.Number, err)
		}
	}

	updated, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != documents.StatusCompleted {
		t.Fatalf("expected completed document, got %s", updated.Status)
	}
	if updated.CurrentStage != 4 {
		t.Fatalf("expected current stage 4, got %d", updated.CurrentStage)
	}
	if updated.ExtractedText == "" {
		t.Fatal("expected extracted text")
	}
	if updated.DocumentType == "" || updated.Confidence < 80 {
		t.Fatalf("expected classification, got %q %d", updated.DocumentType, updated.Confidence)
	}

	got := drainEvents(sub)
	last := got[len(got)-1]
	if last.UpdateType != "completed" {
		t.Fatalf("expected final completed event, got %+v", last)
	}
}

func TestRunMarksFinalStageBeforeDocument(t *testing.T) {
	opts, store, _ := newOptions(t, staticAnalyzers(&stage.Outcome{}, nil))
	ctx := context.Background()

	// A reader that sees a completed document must also see the final stage
	// completed. Race an observer against the final stage transition.
	for i := 0; i < 25; i++ {
		doc := testsupport.NewDocument(t, store, "owner-1", "batch.pdf")
		for number := stage.Ingest; number < stage.Route; number++ {
			if _, err := stageexec.Run(ctx, opts, doc.ID, number); err != nil {
				t.Fatalf("Run stage %d failed: %v", number, err)
			}
		}

		stop := make(chan struct{})
		violation := make(chan documents.StageStatus, 1)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				updated, err := store.GetByID(ctx, doc.ID)
				if err != nil || updated.Status != documents.StatusCompleted {
					continue
				}
				record, err := store.StageByNumber(ctx, doc.ID, stage.Route)
				if err == nil && record.Status != documents.StageCompleted {
					violation <- record.Status
				}
				return
			}
		}()

		if _, err := stageexec.Run(ctx, opts, doc.ID, stage.Route); err != nil {
			t.Fatalf("Run stage 4 failed: %v", err)
		}
		close(stop)
		wg.Wait()

		select {
		case status := <-violation:
			t.Fatalf("document completed while final stage still %s", status)
		default:
		}
	}
}

func TestRunRejectsOrderViolation(t *testing.T) {
	opts, store, _ := newOptions(t, nil)

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "memo.pdf")

	_, err := stageexec.Run(ctx, opts, doc.ID, stage.Classify)
	if !errors.Is(err, stageexec.ErrOrderViolation) {
		t.Fatalf("expected ErrOrderViolation, got %v", err)
	}
}

func TestRunRejectsTerminalStage(t *testing.T) {
	opts, store, _ := newOptions(t, nil)

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "memo.pdf")

	if _, err := stageexec.Run(ctx, opts, doc.ID, stage.Ingest); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	before, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	beforeStages, err := store.Stages(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}

	_, err = stageexec.Run(ctx, opts, doc.ID, stage.Ingest)
	if !errors.Is(err, stageexec.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}

	after, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	afterStages, err := store.Stages(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rejected run changed the document:\nbefore %+v\nafter  %+v", before, after)
	}
	if !reflect.DeepEqual(beforeStages, afterStages) {
		t.Fatalf("rejected run changed stage records:\nbefore %+v\nafter  %+v", beforeStages, afterStages)
	}
}

func TestRunRejectsInvalidStage(t *testing.T) {
	opts, store, _ := newOptions(t, nil)

	doc := testsupport.NewDocument(t, store, "owner-1", "memo.pdf")
	_, err := stageexec.Run(context.Background(), opts, doc.ID, 5)
	if !errors.Is(err, stage.ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
}

func TestRunRecordsAnalyzerFailure(t *testing.T) {
	opts, store, hub := newOptions(t, staticAnalyzers(nil, errors.New("extraction service unavailable")))
	sub := hub.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "broken.pdf")

	_, err := stageexec.Run(ctx, opts, doc.ID, stage.Ingest)
	if !errors.Is(err, stageexec.ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}

	record, err := store.StageByNumber(ctx, doc.ID, stage.Ingest)
	if err != nil {
		t.Fatalf("StageByNumber failed: %v", err)
	}
	if record.Status != documents.StageFailed {
		t.Fatalf("expected failed, got %s", record.Status)
	}
	if record.ErrorMessage != "extraction service unavailable" {
		t.Fatalf("unexpected error message: %q", record.ErrorMessage)
	}

	updated, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != documents.StatusFailed {
		t.Fatalf("expected failed document, got %s", updated.Status)
	}

	got := drainEvents(sub)
	last := got[len(got)-1]
	if last.UpdateType != "stage_1_failed" {
		t.Fatalf("expected stage_1_failed event, got %+v", last)
	}
}

func TestRunRecordsTimeout(t *testing.T) {
	slow := stage.AnalyzerSet{
		stage.Ingest: stage.AnalyzerFunc(func(ctx context.Context, _ *documents.Document) (*stage.Outcome, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &stage.Outcome{}, nil
			}
		}),
	}
	opts, store, _ := newOptions(t, slow)
	opts.Timeout = 50 * time.Millisecond

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "slow.pdf")

	_, err := stageexec.Run(ctx, opts, doc.ID, stage.Ingest)
	if !errors.Is(err, stageexec.ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}

	record, err := store.StageByNumber(ctx, doc.ID, stage.Ingest)
	if err != nil {
		t.Fatalf("StageByNumber failed: %v", err)
	}
	if record.Status != documents.StageFailed {
		t.Fatalf("expected failed, got %s", record.Status)
	}
	if !strings.Contains(record.ErrorMessage, "stage timed out") {
		t.Fatalf("unexpected error message: %q", record.ErrorMessage)
	}
}

func TestRunRecoversAnalyzerPanic(t *testing.T) {
	panicking := stage.AnalyzerSet{
		stage.Ingest: stage.AnalyzerFunc(func(context.Context, *documents.Document) (*stage.Outcome, error) {
			panic("boom")
		}),
	}
	opts, store, _ := newOptions(t, panicking)

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "panic.pdf")

	_, err := stageexec.Run(ctx, opts, doc.ID, stage.Ingest)
	if !errors.Is(err, stageexec.ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}

	record, err := store.StageByNumber(ctx, doc.ID, stage.Ingest)
	if err != nil {
		t.Fatalf("StageByNumber failed: %v", err)
	}
	if !strings.Contains(record.ErrorMessage, "analyzer panic") {
		t.Fatalf("unexpected error message: %q", record.ErrorMessage)
	}
}

func TestRunLeavesRecordOnShutdown(t *testing.T) {
	blocked := stage.AnalyzerSet{
		stage.Ingest: stage.AnalyzerFunc(func(ctx context.Context, _ *documents.Document) (*stage.Outcome, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	}
	opts, store, _ := newOptions(t, blocked)

	ctx, cancel := context.WithCancel(context.Background())
	doc := testsupport.NewDocument(t, store, "owner-1", "shutdown.pdf")

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := stageexec.Run(ctx, opts, doc.ID, stage.Ingest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	record, err := store.StageByNumber(context.Background(), doc.ID, stage.Ingest)
	if err != nil {
		t.Fatalf("StageByNumber failed: %v", err)
	}
	if record.Status != documents.StageProcessing {
		t.Fatalf("expected record left processing for recovery, got %s", record.Status)
	}
}
