// Package scheduler drives the periodic sampling loop.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CycleFunc runs one full sampling cycle for the given tick time.
type CycleFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// AlignToStart snaps ticks to wall-clock interval boundaries so
	// samples from restarts and replicas land on comparable timestamps.
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler invokes a cycle function once per interval. Cycle errors are
// logged and the loop keeps going; only context cancellation stops it.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks until ctx is cancelled, firing cycle at every interval.
func (s *Scheduler) Run(ctx context.Context, cycle CycleFunc) error {
	if err := s.sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	// The first cycle runs immediately so freshly started processes
	// produce a comparison without waiting out a full interval.
	s.fire(ctx, cycle, time.Now().UTC())

	for {
		next := s.nextTick(time.Now().UTC())
		if err := s.sleep(ctx, time.Until(next)); err != nil {
			return err
		}
		s.fire(ctx, cycle, next)
	}
}

func (s *Scheduler) fire(ctx context.Context, cycle CycleFunc, tick time.Time) {
	s.logger.Info().Time("tick", tick).Msg("executing scheduled cycle")
	if err := cycle(ctx, tick); err != nil {
		s.logger.Error().Err(err).Time("tick", tick).Msg("cycle execution failed")
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	for !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}
