package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dayflow/internal/model"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "repo-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func row(user, date, template string) model.Instance {
	return model.Instance{
		ID: uuid.NewString(), UserID: user, LocalDate: date, TemplateID: template,
		Title: template, DurationMinutes: 30, Priority: 3,
	}
}

func TestLastRunDate(t *testing.T) {
	db := testDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()

	last, err := repo.LastRunDate(ctx, "u1", "2025-06-04")
	require.NoError(t, err)
	assert.Empty(t, last, "no history yet")

	for _, d := range []string{"2025-05-30", "2025-06-01"} {
		r := row("u1", d, "t-"+d)
		require.NoError(t, db.Create(&r).Error)
	}
	other := row("u2", "2025-06-03", "t-x")
	require.NoError(t, db.Create(&other).Error)

	last, err = repo.LastRunDate(ctx, "u1", "2025-06-04")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", last, "other users' history must not count")

	last, err = repo.LastRunDate(ctx, "u1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-30", last, "strictly before the given date")
}

func TestReplaceDay_InsertAndUpdate(t *testing.T) {
	db := testDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()

	first := row("u1", "2025-06-04", "t1")
	_, upserted, err := repo.ReplaceDay(ctx, "u1", "2025-06-04", []string{first.ID}, []model.Instance{first})
	require.NoError(t, err)
	assert.Equal(t, 1, upserted)

	// Same natural key with a new placement updates in place.
	second := first
	start := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	second.StartTime = &start
	second.EndTime = &end
	_, upserted, err = repo.ReplaceDay(ctx, "u1", "2025-06-04", []string{second.ID}, []model.Instance{second})
	require.NoError(t, err)
	assert.Equal(t, 1, upserted)

	rows, err := repo.ListByDate(ctx, "u1", "2025-06-04")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	require.NotNil(t, rows[0].StartTime)
	assert.True(t, rows[0].StartTime.Equal(start))
}

func TestReplaceDay_LockedRowWins(t *testing.T) {
	db := testDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()

	done := row("u1", "2025-06-04", "t1")
	done.IsCompleted = true
	require.NoError(t, db.Create(&done).Error)

	attempt := row("u1", "2025-06-04", "t1")
	attempt.Title = "overwrite attempt"
	deleted, upserted, err := repo.ReplaceDay(ctx, "u1", "2025-06-04", []string{attempt.ID}, []model.Instance{attempt})
	require.NoError(t, err)
	assert.Equal(t, 0, deleted, "completed rows are never superseded")
	assert.Equal(t, 0, upserted, "completed rows are never overwritten")

	rows, err := repo.ListByDate(ctx, "u1", "2025-06-04")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, done.ID, rows[0].ID)
	assert.NotEqual(t, "overwrite attempt", rows[0].Title)
}

func TestReplaceDay_DeletesStaleOnly(t *testing.T) {
	db := testDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()

	stale := row("u1", "2025-06-04", "t-old")
	kept := row("u1", "2025-06-04", "t-keep")
	skipped := row("u1", "2025-06-04", "t-skip")
	skipped.IsDeleted = true
	for _, r := range []model.Instance{stale, kept, skipped} {
		rr := r
		require.NoError(t, db.Create(&rr).Error)
	}

	deleted, _, err := repo.ReplaceDay(ctx, "u1", "2025-06-04", []string{kept.ID}, []model.Instance{kept})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only the superseded active row goes")

	rows, err := repo.ListByDate(ctx, "u1", "2025-06-04")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "kept row and user-skipped row survive")
}
