// Package analyzers provides the built-in simulated implementations of the
// four pipeline stages. Each analyzer sleeps for a realistic duration when
// latency simulation is on and can inject random failures for exercising the
// failure paths.
package analyzers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"docflow/internal/config"
	"docflow/internal/documents"
	"docflow/internal/stage"
)

var documentTypes = []string{"Contract", "Invoice", "Receipt", "Legal Document", "Purchase Order"}

// routingDestinations maps classified document types to downstream systems.
// Unknown types land in the general queue.
var routingDestinations = map[string]string{
	"Contract":       "Document Management",
	"Invoice":        "Accounting Software",
	"Receipt":        "Accounting Software",
	"Legal Document": "Document Management",
	"Purchase Order": "ERP System",
}

// FallbackDestination receives documents whose type has no routing rule.
const FallbackDestination = "General Queue"

var stageLatencies = map[int]time.Duration{
	stage.Ingest:   2000 * time.Millisecond,
	stage.Extract:  3000 * time.Millisecond,
	stage.Classify: 2500 * time.Millisecond,
	stage.Route:    1500 * time.Millisecond,
}

type simulator struct {
	number      int
	simulate    bool
	failureRate float64
	analyze     func(ctx context.Context, doc *documents.Document) (*stage.Outcome, error)
}

func (s *simulator) Analyze(ctx context.Context, doc *documents.Document) (*stage.Outcome, error) {
	if s.simulate {
		if err := sleep(ctx, stageLatencies[s.number]); err != nil {
			return nil, err
		}
	}
	if s.failureRate > 0 && rand.Float64() < s.failureRate {
		return nil, fmt.Errorf("failed to process stage %d: %s", s.number, stage.Name(s.number))
	}
	return s.analyze(ctx, doc)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// New builds the default analyzer set from pipeline configuration.
func New(cfg *config.Config) stage.AnalyzerSet {
	set := stage.AnalyzerSet{}
	for number, fn := range map[int]func(context.Context, *documents.Document) (*stage.Outcome, error){
		stage.Ingest:   ingest,
		stage.Extract:  extract,
		stage.Classify: classify,
		stage.Route:    route,
	} {
		set[number] = &simulator{
			number:      number,
			simulate:    cfg.Pipeline.SimulateLatency,
			failureRate: cfg.Pipeline.FailureRate,
			analyze:     fn,
		}
	}
	return set
}

func ingest(_ context.Context, doc *documents.Document) (*stage.Outcome, error) {
	if strings.TrimSpace(doc.Filename) == "" {
		return nil, errors.New("document has no filename")
	}
	if doc.FileSize < 0 {
		return nil, fmt.Errorf("invalid file size %d", doc.FileSize)
	}
	return &stage.Outcome{
		Details: map[string]any{
			"filename": doc.Filename,
			"fileSize": doc.FileSize,
			"mimeType": doc.MimeType,
		},
	}, nil
}

func extract(_ context.Context, doc *documents.Document) (*stage.Outcome, error) {
	text := fmt.Sprintf(
		"Extracted text from %s\n\nThis is simulated extracted text content. Document contains various information that has been processed and extracted for further analysis.",
		doc.OriginalName,
	)
	return &stage.Outcome{
		ExtractedText: text,
		Details: map[string]any{
			"extractedText": text,
			"characters":    len(text),
		},
	}, nil
}

func classify(_ context.Context, _ *documents.Document) (*stage.Outcome, error) {
	documentType := documentTypes[rand.IntN(len(documentTypes))]
	confidence := rand.IntN(20) + 80
	return &stage.Outcome{
		DocumentType: documentType,
		Confidence:   confidence,
		Details: map[string]any{
			"documentType": documentType,
			"confidence":   confidence,
		},
	}, nil
}

func route(_ context.Context, doc *documents.Document) (*stage.Outcome, error) {
	destination, ok := routingDestinations[doc.DocumentType]
	if !ok {
		destination = FallbackDestination
	}
	return &stage.Outcome{
		RoutedTo: destination,
		Details: map[string]any{
			"routedTo": destination,
		},
	}, nil
}
