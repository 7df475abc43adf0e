package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawmate/billpipe/internal/ingestion"
)

type recordedJobs struct {
	calls      []string
	refreshErr error
}

func (j *recordedJobs) Backfill(ctx context.Context) (ingestion.Report, error) {
	j.calls = append(j.calls, ingestion.KindBackfill)
	return ingestion.Report{}, nil
}

func (j *recordedJobs) Refresh(ctx context.Context) (ingestion.Report, error) {
	j.calls = append(j.calls, ingestion.KindRefresh)
	return ingestion.Report{}, j.refreshErr
}

// countdownTrigger fires n times, then cancels the run.
type countdownTrigger struct {
	remaining int
	cancel    context.CancelFunc
}

func (t *countdownTrigger) Wait(ctx context.Context) error {
	if t.remaining == 0 {
		t.cancel()
		return ctx.Err()
	}
	t.remaining--
	return nil
}

func TestRun_BackfillThenRefreshes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := &recordedJobs{}
	err := New(jobs, &countdownTrigger{remaining: 3, cancel: cancel}).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"backfill", "refresh", "refresh", "refresh"}, jobs.calls)
}

func TestRun_ContinuesAfterJobError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := &recordedJobs{refreshErr: errors.New("database is locked")}
	err := New(jobs, &countdownTrigger{remaining: 2, cancel: cancel}).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, jobs.calls, 3)
}

func TestIntervalTrigger(t *testing.T) {
	start := time.Now()
	require.NoError(t, IntervalTrigger{Interval: 20 * time.Millisecond}.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := IntervalTrigger{Interval: time.Hour}.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
