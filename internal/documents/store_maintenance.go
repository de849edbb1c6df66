package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// StatsByOwner returns counts of an owner's documents grouped by status.
func (s *Store) StatsByOwner(ctx context.Context, ownerID string) (Stats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM documents WHERE owner_id = ? GROUP BY status`,
		ownerID,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("document stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch status {
		case StatusCompleted:
			stats.Processed += count
		case StatusProcessing:
			stats.Processing += count
		case StatusFailed:
			stats.Failed += count
		}
	}
	return stats, rows.Err()
}

// ResetInterrupted marks every stage record left processing by a previous run
// as failed and fails its document. Called once at daemon startup, before the
// pipeline begins accepting work.
func (s *Store) ResetInterrupted(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin recovery tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(
		ctx,
		`SELECT DISTINCT document_id FROM processing_stages WHERE status = ?`,
		StageProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("find interrupted stages: %w", err)
	}
	var documentIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		documentIDs = append(documentIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(documentIDs) == 0 {
		return 0, tx.Commit()
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE processing_stages
         SET status = ?, completed_at = ?, error_message = ?
         WHERE status = ?`,
		StageFailed,
		timestamp,
		InterruptedMessage,
		StageProcessing,
	); err != nil {
		return 0, fmt.Errorf("fail interrupted stages: %w", err)
	}

	for _, id := range documentIDs {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
			StatusFailed,
			timestamp,
			id,
		); err != nil {
			return 0, fmt.Errorf("fail interrupted document %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recovery: %w", err)
	}
	return len(documentIDs), nil
}

// CheckHealth returns diagnostic information about the document database.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("document database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat document database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("document database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("document database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping document database: %w", err)
	}
	health.DatabaseReadable = true

	health.TablesPresent = true
	for _, table := range []string{"documents", "processing_stages"} {
		var name string
		row := s.db.QueryRowContext(connCtx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err := row.Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				health.TablesPresent = false
				health.MissingTables = append(health.MissingTables, table)
				continue
			}
			health.Error = err.Error()
			return health, fmt.Errorf("check table %s: %w", table, err)
		}
	}
	if !health.TablesPresent {
		return health, nil
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"

	var total int
	if err := s.db.QueryRowContext(connCtx, `SELECT COUNT(1) FROM documents`).Scan(&total); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count documents: %w", err)
	}
	health.TotalDocuments = total

	return health, nil
}
