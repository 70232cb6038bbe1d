package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/sortir/internal/db"
	"github.com/alexanderramin/sortir/internal/domain"
)

// SQLiteRunRepo implements RunRepo using a SQLite database.
type SQLiteRunRepo struct {
	db db.DBTX
}

func NewSQLiteRunRepo(conn db.DBTX) *SQLiteRunRepo {
	return &SQLiteRunRepo{db: conn}
}

const runColumns = `id, run_trigger, started_at, finished_at,
	raw_count, window_count, filtered_count, ranked_count, shortlist_count, final_count,
	judge_outcome, digest_outcome, report_path, error_message`

func (r *SQLiteRunRepo) Create(ctx context.Context, run *domain.Run) error {
	c := run.Counts
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Trigger), formatTime(run.StartedAt), formatTime(run.FinishedAt),
		c.Raw, c.Window, c.Filtered, c.Ranked, c.Shortlist, c.Final,
		run.JudgeOutcome, run.DigestOutcome, run.ReportPath, run.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (r *SQLiteRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (r *SQLiteRunRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var (
		run               domain.Run
		trigger           string
		started, finished string
	)
	err := s.Scan(
		&run.ID, &trigger, &started, &finished,
		&run.Counts.Raw, &run.Counts.Window, &run.Counts.Filtered,
		&run.Counts.Ranked, &run.Counts.Shortlist, &run.Counts.Final,
		&run.JudgeOutcome, &run.DigestOutcome, &run.ReportPath, &run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.Trigger = domain.RunTrigger(trigger)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}
