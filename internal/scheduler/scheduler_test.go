package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkanlabs/riskpipe/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	err      error
	runs     atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler() *Scheduler {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond
	return s
}

func TestAddJob_RejectsDuplicates(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))
	err := s.AddJob(&fakeJob{name: "a", schedule: "@hourly"})
	assert.Error(t, err)

	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestAddJob_RejectsInvalidSchedule(t *testing.T) {
	s := newTestScheduler()
	err := s.AddJob(&fakeJob{name: "a", schedule: "not a schedule"})
	assert.Error(t, err)
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "a", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("a"))

	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("a")
		return err == nil && len(history.Results) == 1
	}, 5*time.Second, 10*time.Millisecond)

	history, err := s.GetJobHistory("a")
	require.NoError(t, err)
	assert.True(t, history.Results[0].Success)
	assert.Equal(t, int32(1), job.runs.Load())

	stats := s.GetJobStats()
	require.Contains(t, stats, "a")
	assert.Equal(t, 1, stats["a"].TotalRuns)
	assert.Equal(t, 1.0, stats["a"].SuccessRate)
}

func TestRunJob_RetriesUntilLimit(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "a", schedule: "@hourly", err: fmt.Errorf("boom")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("a"))

	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("a")
		return err == nil && len(history.Results) == 1
	}, 5*time.Second, 10*time.Millisecond)

	history, _ := s.GetJobHistory("a")
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "boom", history.Results[0].Error)
	// Initial attempt plus maxRetries.
	assert.Equal(t, int32(4), job.runs.Load())
}

func TestRunJob_NoRetrySentinelStopsRetries(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "a", schedule: "@hourly", err: fmt.Errorf("%w: busy", ErrNoRetry)}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("a"))

	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("a")
		return err == nil && len(history.Results) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), job.runs.Load())
}
