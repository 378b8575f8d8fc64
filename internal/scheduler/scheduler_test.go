package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_RunNowByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "price_refresh"}
	require.NoError(t, s.AddJob("@every 1h", job))

	require.NoError(t, s.RunNow("price_refresh"))
	assert.Equal(t, 1, job.runs)

	err := s.RunNow("compaction")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a cron expression", &countingJob{name: "maintenance"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")

	// A job that failed to register cannot be triggered
	assert.ErrorIs(t, s.RunNow("maintenance"), ErrUnknownJob)
}

func TestScheduler_TracksLastRunOutcome(t *testing.T) {
	s := New(zerolog.Nop())
	good := &countingJob{name: "price_refresh"}
	bad := &countingJob{name: "maintenance", err: errors.New("disk full")}
	require.NoError(t, s.AddJob("@every 1h", good))
	require.NoError(t, s.AddJob("@every 2h", bad))

	require.NoError(t, s.RunNow("price_refresh"))
	require.Error(t, s.RunNow("maintenance"))

	statuses := s.Jobs()
	require.Len(t, statuses, 2)

	// Sorted by name
	assert.Equal(t, "maintenance", statuses[0].Name)
	assert.Equal(t, "@every 2h", statuses[0].Schedule)
	assert.False(t, statuses[0].LastRun.IsZero())
	assert.Equal(t, "disk full", statuses[0].LastError)

	assert.Equal(t, "price_refresh", statuses[1].Name)
	assert.False(t, statuses[1].LastRun.IsZero())
	assert.Empty(t, statuses[1].LastError)
}

func TestScheduler_JobsEmptyBeforeRegistration(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Empty(t, s.Jobs())
}
