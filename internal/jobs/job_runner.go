package jobs

import (
	"context"
	"log"
	"time"
)

// PayoutResubmitter hands withdrawals stuck in SUBMITTED back to the payout rail.
type PayoutResubmitter interface {
	ResubmitStaleWithdrawals(ctx context.Context, olderThan time.Duration) (int, error)
}

// JobRunner runs the settlement background jobs.
type JobRunner struct {
	payouts    PayoutResubmitter
	staleAge   time.Duration
	jobTimeout time.Duration
}

// NewJobRunner creates a new job runner. Withdrawals untouched for staleAge are resubmitted.
func NewJobRunner(payouts PayoutResubmitter, staleAge time.Duration) *JobRunner {
	return &JobRunner{
		payouts:    payouts,
		staleAge:   staleAge,
		jobTimeout: time.Minute,
	}
}

// ResubmitStalePayouts retries payouts whose processor never called back.
func (jr *JobRunner) ResubmitStalePayouts() {
	jr.runWithRecovery("ResubmitStalePayouts", func(ctx context.Context) {
		n, err := jr.payouts.ResubmitStaleWithdrawals(ctx, jr.staleAge)
		if err != nil {
			log.Printf("[JOBS] ResubmitStalePayouts failed after %d resubmissions: %v", n, err)
			return
		}
		if n > 0 {
			log.Printf("[JOBS] Resubmitted %d stale withdrawals", n)
		}
	})
}

// runWithRecovery bounds a job with a timeout and keeps a panic from killing the scheduler.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[JOBS] %s panicked: %v", jobName, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jr.jobTimeout)
	defer cancel()

	start := time.Now()
	jobFunc(ctx)
	log.Printf("[JOBS] %s completed in %s", jobName, time.Since(start).Round(time.Millisecond))
}
