// Package jobs runs the periodic housekeeping of the tracker.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 10 * time.Minute

// Cleaner applies the data retention policy.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Warmer precomputes common dashboard queries.
type Warmer interface {
	Warmup(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

func NewScheduler(log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		log:  log,
	}
}

// ScheduleCleanup runs the retention cleanup on schedule (standard cron spec or descriptor such as "@daily").
func (s *Scheduler) ScheduleCleanup(schedule string, cleaner Cleaner) error {
	_, err := s.cron.AddFunc(schedule, func() {
		RunCleanup(context.Background(), cleaner, s.log)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup %q: %w", schedule, err)
	}
	s.log.WithField("schedule", schedule).Info("Retention cleanup scheduled")
	return nil
}

// ScheduleWarmup refreshes the warm dashboard queries on schedule.
func (s *Scheduler) ScheduleWarmup(schedule string, warmer Warmer) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := warmer.Warmup(ctx); err != nil {
			s.log.WithError(err).Warn("Cache warmup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule warmup %q: %w", schedule, err)
	}
	return nil
}

// RunCleanup runs one retention pass and logs its outcome.
func RunCleanup(ctx context.Context, cleaner Cleaner, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	removed, err := cleaner.Cleanup(ctx)
	if err != nil {
		log.WithError(err).Error("Retention cleanup failed")
		return
	}
	log.WithFields(logrus.Fields{
		"removed":  removed,
		"duration": time.Since(start).String(),
	}).Info("Retention cleanup completed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for scheduled jobs to finish")
	}
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
