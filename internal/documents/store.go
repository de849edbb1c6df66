package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"docflow/internal/config"
)

// Store manages document persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewDocument carries the fields required to register a document with the
// pipeline.
type NewDocument struct {
	OwnerID      string
	Filename     string
	OriginalName string
	FileSize     int64
	MimeType     string
	MetadataJSON string
}

// Open initializes or connects to the document database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create registers a document and its four stage records in one transaction.
// The ingest stage starts out processing with started_at set; the remaining
// stages are pending.
func (s *Store) Create(ctx context.Context, doc NewDocument) (*Document, error) {
	if strings.TrimSpace(doc.OwnerID) == "" {
		return nil, errors.New("owner id is required")
	}
	if strings.TrimSpace(doc.Filename) == "" {
		return nil, errors.New("filename is required")
	}
	if doc.OriginalName == "" {
		doc.OriginalName = doc.Filename
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO documents (
            owner_id, filename, original_name, file_size, mime_type,
            status, current_stage, metadata_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.OwnerID,
		doc.Filename,
		doc.OriginalName,
		doc.FileSize,
		nullableString(doc.MimeType),
		StatusProcessing,
		1,
		nullableString(doc.MetadataJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for stage := 1; stage <= 4; stage++ {
		status := StagePending
		var startedAt any
		if stage == 1 {
			status = StageProcessing
			startedAt = timestamp
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO processing_stages (document_id, stage, status, started_at, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			id,
			stage,
			status,
			startedAt,
			timestamp,
		); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return nil, fmt.Errorf("document %d stage %d: %w", id, stage, ErrConflict)
			}
			return nil, fmt.Errorf("insert stage %d: %w", stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a document by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// GetOwned fetches a document and enforces that it belongs to ownerID.
func (s *Store) GetOwned(ctx context.Context, id int64, ownerID string) (*Document, error) {
	doc, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, fmt.Errorf("document %d: %w", id, ErrForbidden)
	}
	return doc, nil
}

// ListByOwner returns all of an owner's documents, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Update applies a partial mutation to a document and bumps updated_at.
func (s *Store) Update(ctx context.Context, id int64, update DocumentUpdate) error {
	assignments := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339Nano)}

	if update.Status != nil {
		assignments = append(assignments, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.CurrentStage != nil {
		assignments = append(assignments, "current_stage = ?")
		args = append(args, *update.CurrentStage)
	}
	if update.DocumentType != nil {
		assignments = append(assignments, "document_type = ?")
		args = append(args, nullableString(*update.DocumentType))
	}
	if update.Confidence != nil {
		assignments = append(assignments, "confidence = ?")
		args = append(args, *update.Confidence)
	}
	if update.ExtractedText != nil {
		assignments = append(assignments, "extracted_text = ?")
		args = append(args, nullableString(*update.ExtractedText))
	}
	if update.MetadataJSON != nil {
		assignments = append(assignments, "metadata_json = ?")
		args = append(args, nullableString(*update.MetadataJSON))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE documents SET `+strings.Join(assignments, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a document; its stage records go with it via cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}
