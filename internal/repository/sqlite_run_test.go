package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/sortir/internal/db"
	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(started time.Time) *domain.Run {
	return &domain.Run{
		ID:            testutil.NewRunID(),
		Trigger:       domain.TriggerBatch,
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		Counts:        domain.StageCounts{Raw: 120, Window: 40, Filtered: 30, Ranked: 30, Shortlist: 20, Final: 5},
		JudgeOutcome:  "ok",
		DigestOutcome: "unavailable",
		ReportPath:    "reports/2024-06-01.md",
	}
}

func TestRunRepo_CreateAndGetByID(t *testing.T) {
	repo := NewSQLiteRunRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	run := testRun(time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC))

	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Trigger, got.Trigger)
	assert.Equal(t, run.Counts, got.Counts)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
	assert.Equal(t, "unavailable", got.DigestOutcome)
}

func TestRunRepo_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRunRepo(testutil.NewTestDB(t))
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunRepo_ListRecent(t *testing.T) {
	repo := NewSQLiteRunRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		run := testRun(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, repo.Create(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunStateRepo_LastRunRoundTrip(t *testing.T) {
	repo := NewSQLiteRunStateRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	last, err := repo.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	first := time.Date(2024, 6, 1, 7, 0, 0, 123, time.UTC)
	require.NoError(t, repo.SetLastRun(ctx, first))
	second := first.Add(24 * time.Hour)
	require.NoError(t, repo.SetLastRun(ctx, second))

	last, err = repo.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, second.Equal(*last))
}

func TestRunBookkeeping_RollsBackTogether(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("disk full")
	uow := &testutil.FailOnNthExecUoW{DB: database, FailOn: 2, Err: boom}

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := NewSQLiteRunRepo(tx).Create(ctx, testRun(time.Now())); err != nil {
			return err
		}
		return NewSQLiteRunStateRepo(tx).SetLastRun(ctx, time.Now())
	})
	require.ErrorIs(t, err, boom)

	runs, err := NewSQLiteRunRepo(database).ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	last, err := NewSQLiteRunStateRepo(database).LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}
