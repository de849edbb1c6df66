package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"docflow/internal/analyzers"
	"docflow/internal/api"
	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/pipeline"
	"docflow/internal/testsupport"
)

func newService(t *testing.T) (*api.DocumentService, *documents.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub(64)
	t.Cleanup(hub.Close)
	driver := pipeline.NewDriver(cfg, store, hub, analyzers.New(cfg), nil)
	if err := driver.Start(context.Background()); err != nil {
		t.Fatalf("driver.Start: %v", err)
	}
	t.Cleanup(driver.Stop)
	return api.NewDocumentService(store, driver, hub), store
}

func waitForDocumentStatus(t *testing.T, store *documents.Store, id int64, want documents.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if doc.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("document %d never reached status %s", id, want)
}

func TestSubmitCreatesAndLaunches(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	doc, err := svc.Submit(ctx, "owner-1", api.SubmitRequest{
		Filename:     "scan-001.pdf",
		OriginalName: "Invoice March.pdf",
		FileSize:     4096,
		MimeType:     "application/pdf",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if doc.OwnerID != "owner-1" {
		t.Fatalf("unexpected owner: %q", doc.OwnerID)
	}
	if len(doc.Stages) != 4 {
		t.Fatalf("expected 4 stage records, got %d", len(doc.Stages))
	}

	waitForDocumentStatus(t, store, doc.ID, documents.StatusCompleted)
}

func TestSubmitValidatesPayload(t *testing.T) {
	svc, _ := newService(t)

	ctx := context.Background()
	if _, err := svc.Submit(ctx, "owner-1", api.SubmitRequest{}); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing filename, got %v", err)
	}
	if _, err := svc.Submit(ctx, "owner-1", api.SubmitRequest{
		Filename: "a.pdf",
		FileSize: -1,
	}); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative size, got %v", err)
	}
	if _, err := svc.Submit(ctx, "owner-1", api.SubmitRequest{
		Filename: "a.pdf",
		Metadata: []byte("{not json"),
	}); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad metadata, got %v", err)
	}
}

func TestDocumentEnforcesOwnership(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "private.pdf")

	if _, err := svc.Document(ctx, "owner-2", doc.ID); !errors.Is(err, documents.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Document(ctx, "owner-1", doc.ID); err != nil {
		t.Fatalf("Document failed for owner: %v", err)
	}
	if _, err := svc.Document(ctx, "owner-1", 999); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListReturnsOwnerDocumentsWithStages(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	testsupport.NewDocument(t, store, "owner-1", "one.pdf")
	testsupport.NewDocument(t, store, "owner-1", "two.pdf")
	testsupport.NewDocument(t, store, "owner-2", "other.pdf")

	docs, err := svc.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	for _, doc := range docs {
		if len(doc.Stages) != 4 {
			t.Fatalf("expected stages on listed document, got %d", len(doc.Stages))
		}
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "old.pdf")

	if err := svc.Delete(ctx, "owner-2", doc.ID); !errors.Is(err, documents.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", doc.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", doc.ID); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStatsCountsOwnerDocuments(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	testsupport.NewDocument(t, store, "owner-1", "a.pdf")
	testsupport.NewDocument(t, store, "owner-2", "b.pdf")

	stats, err := svc.Stats(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 || stats.Processing != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReprocessThroughService(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	submitted, err := svc.Submit(ctx, "owner-1", api.SubmitRequest{Filename: "doc.pdf"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForDocumentStatus(t, store, submitted.ID, documents.StatusCompleted)

	doc, err := svc.Reprocess(ctx, "owner-1", submitted.ID, api.ReprocessRequest{Stage: 2})
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	if doc.Status != string(documents.StatusProcessing) {
		t.Fatalf("expected processing, got %s", doc.Status)
	}
	if doc.CurrentStage != 2 {
		t.Fatalf("expected current stage 2, got %d", doc.CurrentStage)
	}

	waitForDocumentStatus(t, store, submitted.ID, documents.StatusCompleted)
}

func TestRunStageThroughService(t *testing.T) {
	svc, store := newService(t)

	ctx := context.Background()
	doc := testsupport.NewDocument(t, store, "owner-1", "manual.pdf")

	record, err := svc.RunStage(ctx, "owner-1", doc.ID, 1)
	if err != nil {
		t.Fatalf("RunStage failed: %v", err)
	}
	if record.Status != string(documents.StageCompleted) {
		t.Fatalf("expected completed stage, got %s", record.Status)
	}
	if record.StageName != "Ingest" {
		t.Fatalf("unexpected stage name %q", record.StageName)
	}
}
