package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carshare/internal/jobs"
)

type countingResubmitter struct {
	calls chan struct{}
}

func (c *countingResubmitter) ResubmitStaleWithdrawals(ctx context.Context, olderThan time.Duration) (int, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	runner := jobs.NewJobRunner(&countingResubmitter{calls: make(chan struct{}, 1)}, time.Minute)

	_, err := NewScheduler(runner, Schedules{ResubmitStalePayouts: "every five minutes"})
	assert.Error(t, err)

	// Five fields are rejected: the scheduler expects a seconds column.
	_, err = NewScheduler(runner, Schedules{ResubmitStalePayouts: "*/5 * * * *"})
	assert.Error(t, err)
}

func TestScheduler_RunsJobs(t *testing.T) {
	resubmitter := &countingResubmitter{calls: make(chan struct{}, 1)}
	runner := jobs.NewJobRunner(resubmitter, time.Minute)

	s, err := NewScheduler(runner, Schedules{ResubmitStalePayouts: "* * * * * *"})
	require.NoError(t, err)
	require.Len(t, s.Entries(), 1)

	s.Start()
	defer s.Stop()

	select {
	case <-resubmitter.calls:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run within 3s")
	}
}
