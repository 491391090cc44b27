package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"munin/internal/models"
	"munin/internal/store"
)

func newTestStore(t *testing.T) *StoreImpl {
	t.Helper()
	s, err := NewRunStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func startedRun(trigger string) *models.Run {
	return &models.Run{
		RunID:     uuid.New(),
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

func TestRunStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := startedRun(models.TriggerSchedule)
	require.NoError(t, s.CreateRun(ctx, run))
	assert.NotZero(t, run.ID, "CreateRun should backfill the row id")

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, models.TriggerSchedule, got.Trigger)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.CommitHash)
	assert.Empty(t, got.Steps)
}

func TestRunStore_FinishRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := startedRun(models.TriggerManual)
	require.NoError(t, s.CreateRun(ctx, run))

	// Terminal state with step results and a publish commit
	finished := time.Now().UTC()
	commit := "0123456789abcdef0123456789abcdef01234567"
	run.Status = models.RunStatusSucceeded
	run.ArtifactChanged = true
	run.CommitHash = &commit
	run.FinishedAt = &finished
	run.Steps = []models.StepResult{
		{Name: "sync-repo", Status: models.StepStatusOK, DurationMS: 1200},
		{Name: "publish", Status: models.StepStatusOK, DurationMS: 340},
	}
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, got.Status)
	assert.True(t, got.ArtifactChanged)
	require.NotNil(t, got.CommitHash)
	assert.Equal(t, commit, *got.CommitHash)
	require.NotNil(t, got.FinishedAt)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "sync-repo", got.Steps[0].Name)
	assert.Equal(t, int64(1200), got.Steps[0].DurationMS)
}

func TestRunStore_FinishRun_FailureFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := startedRun(models.TriggerPush)
	require.NoError(t, s.CreateRun(ctx, run))

	finished := time.Now().UTC()
	errMsg := "step categorize (subprocess): categorizer exited with code 1"
	warning := "artifact data/categorized_articles.json is not well-formed JSON"
	run.Status = models.RunStatusFailed
	run.Error = &errMsg
	run.ArtifactWarning = &warning
	run.FinishedAt = &finished
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, errMsg, *got.Error)
	require.NotNil(t, got.ArtifactWarning)
	assert.Equal(t, warning, *got.ArtifactWarning)
}

func TestRunStore_FinishRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	run := startedRun(models.TriggerManual)
	run.Status = models.RunStatusFailed
	err := s.FinishRun(context.Background(), run)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStore_GetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStore_DuplicateRunID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := startedRun(models.TriggerSchedule)
	require.NoError(t, s.CreateRun(ctx, run))

	dup := startedRun(models.TriggerSchedule)
	dup.RunID = run.RunID
	err := s.CreateRun(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestRunStore_ListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run := startedRun(models.TriggerSchedule)
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateRun(ctx, run))
		ids = append(ids, run.RunID)
	}

	runs, err := s.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID, "the most recent run comes first")
	assert.Equal(t, ids[0], runs[2].RunID)

	// Pagination window
	page, err := s.ListRuns(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].RunID)
}
