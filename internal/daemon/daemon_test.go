package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"docflow/internal/analyzers"
	"docflow/internal/api"
	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/pipeline"
	"docflow/internal/testsupport"
)

func TestStartRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub(16)
	driver := pipeline.NewDriver(cfg, store, hub, analyzers.New(cfg), nil)
	first, err := New(cfg, store, nil, driver, hub)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer first.Stop()

	secondStore := testsupport.MustOpenStore(t, cfg)
	secondHub := events.NewHub(16)
	secondDriver := pipeline.NewDriver(cfg, secondStore, secondHub, analyzers.New(cfg), nil)
	second, err := New(cfg, secondStore, nil, secondDriver, secondHub)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected")
	}
}

func TestStartRecoversInterruptedDocuments(t *testing.T) {
	d, _ := newTestDaemon(t)

	// A freshly created document has its ingest stage processing, mimicking
	// work left behind by a previous run.
	doc := testsupport.NewDocument(t, d.store, "owner-1", "stranded.pdf")

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	recovered, err := d.store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if recovered.Status != documents.StatusFailed {
		t.Fatalf("expected interrupted document failed, got %s", recovered.Status)
	}
	record, err := d.store.StageByNumber(context.Background(), doc.ID, 1)
	if err != nil {
		t.Fatalf("StageByNumber failed: %v", err)
	}
	if record.ErrorMessage != documents.InterruptedMessage {
		t.Fatalf("unexpected error message: %q", record.ErrorMessage)
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	d := startedDaemon(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+d.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for d.hub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	client, err := api.NewClient(d.Addr(), "owner-1")
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}
	doc, err := client.Submit(context.Background(), api.SubmitRequest{Filename: "stream.pdf"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	seen := map[string]bool{}
	for !seen["completed"] {
		var event events.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v (seen %v)", err, seen)
		}
		if event.DocumentID != doc.ID {
			continue
		}
		seen[event.UpdateType] = true
	}

	for _, want := range []string{"stage_1_started", "stage_1_completed", "stage_4_completed", "completed"} {
		if !seen[want] {
			t.Fatalf("expected %s event, saw %v", want, seen)
		}
	}
}
