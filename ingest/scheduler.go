package ingest

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler triggers ingestion runs on a fixed interval. It is a dumb
// timer around Runner.Run; scheduling semantics beyond "every N
// minutes" belong to whatever invokes the runner.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    *Runner
	interval  time.Duration
	timeout   time.Duration
}

// NewScheduler creates a scheduler around the runner. timeout bounds
// each run; <= 0 means one minute.
func NewScheduler(runner *Runner, interval, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying
// scheduler asynchronously.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running forecast ingestion")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.runner.Run(ctx); err != nil {
			log.Printf("scheduler: ingestion run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
