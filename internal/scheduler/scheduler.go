// Package scheduler runs the periodic cleanup of expired reset codes and
// refresh tokens.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pitskod/expense-tracker/internal/service"
)

const defaultSweepTimeout = 5 * time.Minute

type Sweeper interface {
	Run(ctx context.Context) (service.SweepResult, error)
}

type Logger interface {
	Printf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  Logger
	timeout time.Duration

	mu      sync.Mutex
	baseCtx context.Context
}

// New schedules sweeper on a standard five field cron expression evaluated in UTC.
// Overlapping runs are skipped and a panicking run is logged and recovered.
func New(schedule string, sweeper Sweeper, logger Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(logger)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sweeper: sweeper,
		logger:  logger,
		timeout: defaultSweepTimeout,
		baseCtx: context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// sweep in progress to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	if next := s.Next(); !next.IsZero() {
		s.logger.Infof("scheduler: next sweep at %s", next.Format(time.RFC3339))
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Infof("scheduler: stopped")
	return nil
}

// Next reports when the sweep runs next. It is zero before Run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(base), s.timeout)
	defer cancel()

	if _, err := s.sweeper.Run(ctx); err != nil {
		s.logger.Errorf("scheduler: sweep failed: %v", err)
	}
}
