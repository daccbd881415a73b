package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger", "digest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	run := Run{
		ID:           "run-1",
		Date:         "2026-10-18",
		Status:       "generated",
		MarkdownPath: "output/tech_digest_2026-10-18.md",
		HTMLPath:     "output/tech_digest_2026-10-18.html",
		StartedAt:    started,
	}
	require.NoError(t, s.SaveRun(ctx, run))

	run.Status = "draft_only"
	run.Publish = true
	run.DraftID = "draft-1"
	run.Outcome = "DRAFT_ONLY"
	run.FinishedAt = started.Add(3 * time.Minute)
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, Run{
			ID:        id,
			Date:      base.AddDate(0, 0, i).Format("2006-01-02"),
			Status:    "generated",
			StartedAt: base.AddDate(0, 0, i),
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.True(t, runs[0].FinishedAt.IsZero())
}
