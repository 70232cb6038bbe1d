package service

import (
	"context"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/normalize"
)

// EventSource acquires the raw dataset. since narrows it to events starting
// at or after the given instant; nil fetches everything.
type EventSource interface {
	Collect(ctx context.Context, since *time.Time) ([]normalize.RawRecord, time.Time, error)
}

// Ranker orders records by similarity to the user's likes.
type Ranker interface {
	Rank(ctx context.Context, records []domain.Record, likes string) ([]domain.Record, error)
}

// ReportSink persists the rendered digest.
type ReportSink interface {
	Write(path, content string) error
}

// NewsletterService runs the digest pipeline once.
type NewsletterService interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// HistoryService exposes recorded runs.
type HistoryService interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.Run, error)
}
