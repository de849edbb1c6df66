package documents

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations/0001_init.sql
var initSchema string

const initVersion = "0001_init"

// applyMigrations creates the schema on first open. Applied versions are
// recorded in schema_migrations so later schema changes can append their own
// version rows.
func (s *Store) applyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var applied int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", initVersion)
	if err := row.Scan(&applied); err != nil {
		return fmt.Errorf("scan schema version: %w", err)
	}
	if applied == 0 {
		if _, err := tx.ExecContext(ctx, initSchema); err != nil {
			return fmt.Errorf("apply schema %s: %w", initVersion, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", initVersion); err != nil {
			return fmt.Errorf("record schema %s: %w", initVersion, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
