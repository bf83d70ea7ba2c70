package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"

	"go.uber.org/multierr"
)

const defaultSweepInterval = time.Hour

// Job is one unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// SweeperConfig wires a Sweeper. Metrics is optional.
type SweeperConfig struct {
	Jobs     []Job
	Lock     Lock
	Interval time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.CronJobMetrics
}

// Sweeper runs its jobs on whichever instance holds the lock.
type Sweeper struct {
	jobs     []Job
	lock     Lock
	interval time.Duration
	logg     *logger.Logger
	metrics  *metrics.CronJobMetrics
}

// NewSweeper creates a new Sweeper. Nil jobs are dropped.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger required")
	}
	if cfg.Lock == nil {
		return nil, errors.New("lock required")
	}
	jobs := make([]Job, 0, len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return nil, errors.New("at least one job required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		jobs:     jobs,
		lock:     cfg.Lock,
		interval: interval,
		logg:     cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Sweep runs every job once under the lock and returns their combined errors.
// A failing job does not stop the ones after it. ran is false when another
// instance holds the lock.
func (s *Sweeper) Sweep(ctx context.Context) (ran bool, err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire sweeper lock: %w", err)
	}
	if !locked {
		return false, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release sweeper lock", relErr)
		}
	}()

	var errs error
	for _, job := range s.jobs {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return true, errs
}

func (s *Sweeper) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveDuration(name, elapsed)
	if err != nil {
		s.metrics.IncFailure(name)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds()), "job completed")
	return nil
}

// Run sweeps right away and then once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		ran, err := s.Sweep(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "sweep failed", err)
		case !ran:
			s.logg.Debug(ctx, "sweeper lock held elsewhere; skipping")
		}
		timer.Reset(s.interval)
	}
}
