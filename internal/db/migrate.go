package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate applies the schema. Every statement is idempotent, so it runs on
// each open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN has no IF NOT EXISTS form
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Single-row table holding the timestamp of the last successful batch run.
	`CREATE TABLE IF NOT EXISTS run_state (
		id          TEXT PRIMARY KEY CHECK(id = 'default'),
		last_run_at TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		run_trigger     TEXT NOT NULL CHECK(run_trigger IN ('batch','api')),
		started_at      TEXT NOT NULL,
		finished_at     TEXT NOT NULL,
		raw_count       INTEGER NOT NULL DEFAULT 0,
		window_count    INTEGER NOT NULL DEFAULT 0,
		filtered_count  INTEGER NOT NULL DEFAULT 0,
		ranked_count    INTEGER NOT NULL DEFAULT 0,
		shortlist_count INTEGER NOT NULL DEFAULT 0,
		final_count     INTEGER NOT NULL DEFAULT 0,
		judge_outcome   TEXT NOT NULL DEFAULT '',
		digest_outcome  TEXT NOT NULL DEFAULT '',
		report_path     TEXT NOT NULL DEFAULT '',
		error_message   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
}
