package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; the database's user_version records how
// many have run. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS quota_state (
		service TEXT PRIMARY KEY,
		uploads_this_window INTEGER NOT NULL DEFAULT 0,
		window_start INTEGER NOT NULL,
		last_submission_at INTEGER,
		cooldown_active INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quota_state_updated_at ON quota_state (updated_at)`,
	// window_start and last_submission_at move from seconds to nanoseconds.
	`UPDATE quota_state SET
		window_start = window_start * 1000000000,
		last_submission_at = last_submission_at * 1000000000`,
}

// SchemaVersion is the user_version a fully migrated ledger reports.
func SchemaVersion() int {
	return len(migrations)
}

// Migrate applies pending migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	current, err := s.userVersion(ctx)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
