// Package stage defines the fixed four-stage pipeline and the analyzer
// contract each stage implements.
package stage

import (
	"context"
	"errors"

	"docflow/internal/documents"
)

// Count is the number of pipeline stages.
const Count = 4

// Stage numbers.
const (
	Ingest   = 1
	Extract  = 2
	Classify = 3
	Route    = 4
)

// ErrInvalidNumber indicates a stage number outside 1 through 4.
var ErrInvalidNumber = errors.New("invalid stage number")

// Definition describes one pipeline stage.
type Definition struct {
	Number int
	Name   string
}

var definitions = [Count]Definition{
	{Number: Ingest, Name: "Ingest"},
	{Number: Extract, Name: "Extract"},
	{Number: Classify, Name: "Classify"},
	{Number: Route, Name: "Route"},
}

// All returns the stage definitions in execution order.
func All() []Definition {
	out := make([]Definition, Count)
	copy(out, definitions[:])
	return out
}

// Valid reports whether n names a pipeline stage.
func Valid(n int) bool {
	return n >= 1 && n <= Count
}

// Name returns the display name for a stage number, or an empty string for an
// invalid number.
func Name(n int) string {
	if !Valid(n) {
		return ""
	}
	return definitions[n-1].Name
}

// Outcome carries the document updates a successful stage produces. Zero
// fields are ignored; Details is serialized onto the stage record.
type Outcome struct {
	ExtractedText string
	DocumentType  string
	Confidence    int
	RoutedTo      string
	Details       map[string]any
}

// Analyzer performs the work of one pipeline stage against a document.
// Implementations must respect ctx cancellation.
type Analyzer interface {
	Analyze(ctx context.Context, doc *documents.Document) (*Outcome, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, doc *documents.Document) (*Outcome, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, doc *documents.Document) (*Outcome, error) {
	return f(ctx, doc)
}

// AnalyzerSet maps stage numbers to their analyzers.
type AnalyzerSet map[int]Analyzer
