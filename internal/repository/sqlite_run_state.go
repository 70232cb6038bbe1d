package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/sortir/internal/db"
)

// SQLiteRunStateRepo implements RunStateRepo over the single-row run_state table.
type SQLiteRunStateRepo struct {
	db db.DBTX
}

func NewSQLiteRunStateRepo(conn db.DBTX) *SQLiteRunStateRepo {
	return &SQLiteRunStateRepo{db: conn}
}

func (r *SQLiteRunStateRepo) LastRun(ctx context.Context) (*time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT last_run_at FROM run_state WHERE id = 'default'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last run: %w", err)
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parsing last run %q: %w", raw, err)
	}
	return &t, nil
}

func (r *SQLiteRunStateRepo) SetLastRun(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_state (id, last_run_at, updated_at) VALUES ('default', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET last_run_at = excluded.last_run_at, updated_at = excluded.updated_at`,
		formatTime(at), nowUTC())
	if err != nil {
		return fmt.Errorf("saving last run: %w", err)
	}
	return nil
}
