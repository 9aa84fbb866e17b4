// Package scheduler triggers the daily job at a wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultPoll = time.Second

// Job is run once per trigger with the trigger check time.
type Job func(ctx context.Context, now time.Time) error

// Scheduler polls the clock and runs its job once the next daily trigger
// has passed. The job runs inside the polling loop, so runs never overlap.
type Scheduler struct {
	schedule cron.Schedule
	spec     string
	poll     time.Duration
	job      Job
	logger   *slog.Logger

	mu   sync.Mutex
	next time.Time
}

// New schedules job daily at "HH:MM" in the IANA zone tz, checking every
// poll.
func New(at, tz string, poll time.Duration, job Job, logger *slog.Logger) (*Scheduler, error) {
	clock, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("schedule time %q: want HH:MM", at)
	}
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", tz, err)
	}
	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, clock.Minute(), clock.Hour())
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if poll <= 0 {
		poll = defaultPoll
	}
	s := &Scheduler{
		schedule: schedule,
		spec:     spec,
		poll:     poll,
		job:      job,
		logger:   logger,
	}
	s.Reset(time.Now())
	return s, nil
}

// Reset sets the next trigger to the first one after from.
func (s *Scheduler) Reset(from time.Time) {
	s.mu.Lock()
	s.next = s.schedule.Next(from)
	s.mu.Unlock()
}

// Next returns the next trigger time.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Run checks for a due trigger every poll interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "schedule", s.spec, "next", s.Next())
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.RunPending(ctx, now)
		}
	}
}

// RunPending runs the job if the next trigger is at or before now, then
// advances the trigger. It reports whether the job ran.
func (s *Scheduler) RunPending(ctx context.Context, now time.Time) bool {
	if now.Before(s.Next()) {
		return false
	}
	start := time.Now()
	if err := s.job(ctx, now); err != nil {
		s.logger.Error("scheduled job failed", "error", err, "duration", time.Since(start))
	} else {
		s.logger.Info("scheduled job finished", "duration", time.Since(start))
	}
	s.Reset(now)
	s.logger.Info("next run scheduled", "next", s.Next())
	return true
}
