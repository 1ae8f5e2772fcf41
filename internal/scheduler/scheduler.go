package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"carshare/internal/jobs"
)

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// Schedules holds the cron expressions (with seconds) of every job.
type Schedules struct {
	ResubmitStalePayouts string
}

// NewScheduler creates a scheduler running in UTC with seconds precision.
func NewScheduler(jobRunner *jobs.JobRunner, schedules Schedules) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(schedules); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(schedules Schedules) error {
	if _, err := s.cron.AddFunc(schedules.ResubmitStalePayouts, s.jobs.ResubmitStalePayouts); err != nil {
		return fmt.Errorf("register ResubmitStalePayouts %q: %w", schedules.ResubmitStalePayouts, err)
	}
	log.Printf("[SCHEDULER] Registered %d jobs", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[SCHEDULER] Started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[SCHEDULER] Stopped")
}

// Entries returns the registered jobs, for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
