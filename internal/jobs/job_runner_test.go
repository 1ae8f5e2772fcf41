package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeResubmitter struct {
	calls     int
	olderThan time.Duration
	n         int
	err       error
	panicWith any
}

func (f *fakeResubmitter) ResubmitStaleWithdrawals(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls++
	f.olderThan = olderThan
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("job context has no deadline")
	}
	return f.n, f.err
}

func TestResubmitStalePayouts_PassesAge(t *testing.T) {
	fake := &fakeResubmitter{n: 2}
	NewJobRunner(fake, 15*time.Minute).ResubmitStalePayouts()

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 15*time.Minute, fake.olderThan)
}

func TestResubmitStalePayouts_SurvivesErrors(t *testing.T) {
	fake := &fakeResubmitter{err: errors.New("database unavailable")}
	assert.NotPanics(t, NewJobRunner(fake, time.Minute).ResubmitStalePayouts)
}

func TestResubmitStalePayouts_RecoversPanic(t *testing.T) {
	fake := &fakeResubmitter{panicWith: "nil map"}
	assert.NotPanics(t, NewJobRunner(fake, time.Minute).ResubmitStalePayouts)
	assert.Equal(t, 1, fake.calls)
}
