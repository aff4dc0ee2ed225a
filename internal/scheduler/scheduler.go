package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/elonfeng/debateradar/internal/pipeline"
)

// Runner performs one pipeline run for a date; empty means today.
type Runner interface {
	Run(ctx context.Context, date string) (*pipeline.Result, error)
}

// Scheduler triggers the daily pipeline run on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	loc        *time.Location
	runner     Runner
	logger     *log.Logger
	runOnStart bool
	ctx        context.Context
}

// New creates a scheduler for the cron expression in the given timezone.
func New(spec, timezone string, runOnStart bool, runner Runner, logger *log.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner must not be nil")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		loc:        loc,
		runner:     runner,
		logger:     logger,
		runOnStart: runOnStart,
		ctx:        context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("add cron %q: %w", spec, err)
	}
	return s, nil
}

// Next returns the next scheduled run time after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(now.In(s.loc))
}

// Run starts the scheduler loop. Blocks until ctx is cancelled, then waits
// for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx

	if s.runOnStart {
		s.logger.Info("scheduler: initial run")
		s.tick()
	}

	s.cron.Start()
	s.logger.Info("scheduler: running", "next", s.Next(time.Now()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler: stopped")
	return ctx.Err()
}

func (s *Scheduler) tick() {
	res, err := s.runner.Run(s.ctx, "")
	if errors.Is(err, pipeline.ErrBusy) {
		s.logger.Warn("scheduler: previous run still in progress, skipping")
		return
	}
	if err != nil {
		s.logger.Error("scheduler: run failed", "err", err)
		return
	}
	if res.Decision != nil {
		s.logger.Info("scheduler: run finished", "run", res.RunID, "topic", res.Decision.Title)
		return
	}
	s.logger.Info("scheduler: run finished", "run", res.RunID, "candidates", len(res.Ranked))
}
