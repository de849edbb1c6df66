package testsupport

import (
	"context"
	"testing"

	"docflow/internal/config"
	"docflow/internal/documents"
)

// MustOpenStore opens a documents.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *documents.Store {
	t.Helper()

	store, err := documents.Open(cfg)
	if err != nil {
		t.Fatalf("documents.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDocument registers a document for tests using the provided store.
func NewDocument(t testing.TB, store *documents.Store, owner, filename string) *documents.Document {
	t.Helper()

	doc, err := store.Create(context.Background(), documents.NewDocument{
		OwnerID:      owner,
		Filename:     filename,
		OriginalName: filename,
		FileSize:     2048,
		MimeType:     "application/pdf",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return doc
}
