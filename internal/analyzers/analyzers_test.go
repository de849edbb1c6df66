package analyzers_test

import (
	"context"
	"strings"
	"testing"

	"docflow/internal/analyzers"
	"docflow/internal/documents"
	"docflow/internal/stage"
	"docflow/internal/testsupport"
)

func testDocument() *documents.Document {
	return &documents.Document{
		ID:           1,
		OwnerID:      "owner-1",
		Filename:     "scan-001.pdf",
		OriginalName: "Quarterly Report.pdf",
		FileSize:     4096,
		MimeType:     "application/pdf",
	}
}

func TestNewCoversAllStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := analyzers.New(cfg)

	for _, def := range stage.All() {
		if _, ok := set[def.Number]; !ok {
			t.Fatalf("missing analyzer for stage %d (%s)", def.Number, def.Name)
		}
	}
}

func TestIngestRejectsEmptyFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := analyzers.New(cfg)

	doc := testDocument()
	doc.Filename = "  "
	if _, err := set[stage.Ingest].Analyze(context.Background(), doc); err == nil {
		t.Fatal("expected error for empty filename")
	}
}

func TestExtractMentionsOriginalName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := analyzers.New(cfg)

	outcome, err := set[stage.Extract].Analyze(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !strings.Contains(outcome.ExtractedText, "Quarterly Report.pdf") {
		t.Fatalf("expected extracted text to mention original name, got %q", outcome.ExtractedText)
	}
}

func TestClassifyProducesKnownTypeAndConfidence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := analyzers.New(cfg)

	known := map[string]bool{
		"Contract": true, "Invoice": true, "Receipt": true,
		"Legal Document": true, "Purchase Order": true,
	}
	for i := 0; i < 50; i++ {
		outcome, err := set[stage.Classify].Analyze(context.Background(), testDocument())
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if !known[outcome.DocumentType] {
			t.Fatalf("unexpected document type %q", outcome.DocumentType)
		}
		if outcome.Confidence < 80 || outcome.Confidence > 99 {
			t.Fatalf("confidence %d out of range", outcome.Confidence)
		}
	}
}

func TestRouteUsesMappingWithFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := analyzers.New(cfg)

	doc := testDocument()
	doc.DocumentType = "Purchase Order"
	outcome, err := set[stage.Route].Analyze(context.Background(), doc)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if outcome.RoutedTo != "ERP System" {
		t.Fatalf("expected ERP System, got %q", outcome.RoutedTo)
	}

	doc.DocumentType = "Mystery"
	outcome, err = set[stage.Route].Analyze(context.Background(), doc)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if outcome.RoutedTo != analyzers.FallbackDestination {
		t.Fatalf("expected fallback destination, got %q", outcome.RoutedTo)
	}
}

func TestFailureInjectionAlwaysFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFailureRate(1))
	set := analyzers.New(cfg)

	if _, err := set[stage.Ingest].Analyze(context.Background(), testDocument()); err == nil {
		t.Fatal("expected injected failure")
	}
}
