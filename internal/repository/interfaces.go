package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RunStateRepo persists the last successful batch-run timestamp.
type RunStateRepo interface {
	// LastRun returns nil when no batch run has completed yet.
	LastRun(ctx context.Context) (*time.Time, error)
	SetLastRun(ctx context.Context, at time.Time) error
}

// RunRepo records pipeline executions.
type RunRepo interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.Run, error)
}
