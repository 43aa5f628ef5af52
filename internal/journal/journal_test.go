package journal

import (
	"context"
	"testing"
	"time"

	"github.com/pdftext/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func attempt(seq uint64, outcome models.AttemptOutcome, d time.Duration) models.Attempt {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute)
	return models.Attempt{
		Seq:        seq,
		FileName:   "report.pdf",
		SizeBytes:  2048,
		Engine:     "demo",
		Outcome:    outcome,
		StartedAt:  start,
		FinishedAt: start.Add(d),
	}
}

func TestRecordAndRecent(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	done := attempt(1, models.OutcomeCompleted, 200*time.Millisecond)
	done.PageCount = 3
	done.WordCount = 750
	failed := attempt(2, models.OutcomeFailed, 50*time.Millisecond)
	failed.ErrorKind = "ExtractionFailure"

	require.NoError(t, j.Record(ctx, done))
	require.NoError(t, j.Record(ctx, failed))

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uint64(2), got[0].Seq)
	assert.Equal(t, models.OutcomeFailed, got[0].Outcome)
	assert.Equal(t, "ExtractionFailure", got[0].ErrorKind)

	assert.Equal(t, uint64(1), got[1].Seq)
	assert.Equal(t, 3, got[1].PageCount)
	assert.Equal(t, 750, got[1].WordCount)
	assert.Equal(t, "demo", got[1].Engine)
	assert.True(t, done.StartedAt.Equal(got[1].StartedAt), "started_at round-trips")
	assert.Equal(t, 200*time.Millisecond, got[1].Duration())
}

func TestRecentLimit(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, j.Record(ctx, attempt(i, models.OutcomeCompleted, time.Second)))
	}

	got, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(5), got[0].Seq)
	assert.Equal(t, uint64(4), got[1].Seq)
}

func TestSummary(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, attempt(1, models.OutcomeCompleted, 100*time.Millisecond)))
	require.NoError(t, j.Record(ctx, attempt(2, models.OutcomeCompleted, 300*time.Millisecond)))
	require.NoError(t, j.Record(ctx, attempt(3, models.OutcomeCancelled, 10*time.Millisecond)))
	require.NoError(t, j.Record(ctx, attempt(4, models.OutcomeTimeout, time.Second)))

	summary, err := j.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 3)

	assert.Equal(t, models.OutcomeCancelled, summary[0].Outcome)
	assert.Equal(t, 1, summary[0].Count)

	assert.Equal(t, models.OutcomeCompleted, summary[1].Outcome)
	assert.Equal(t, 2, summary[1].Count)
	assert.InDelta(t, 200.0, summary[1].AvgDurationMs, 0.001)

	assert.Equal(t, models.OutcomeTimeout, summary[2].Outcome)
}

func TestEmptyJournal(t *testing.T) {
	j := openJournal(t)

	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	summary, err := j.Summary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary)
}
