package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAlignsToIntervalBoundary(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2025, 6, 2, 15, 0, 23, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2025, 6, 2, 15, 1, 0, 0, time.UTC)) {
		t.Fatalf("want aligned tick 15:01:00, got %s", got)
	}

	// Exactly on a boundary moves to the following one.
	boundary := time.Date(2025, 6, 2, 15, 1, 0, 0, time.UTC)
	if got := s.nextTick(boundary); !got.Equal(boundary.Add(time.Minute)) {
		t.Fatalf("want next boundary, got %s", got)
	}
}

func TestNextTickWithoutAlignment(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2025, 6, 2, 15, 0, 23, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("want now+interval, got %s", got)
	}
}

func TestRunFiresImmediatelyAndStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		calls++
		cancel()
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("want exactly one immediate cycle, got %d", calls)
	}
}

func TestRunKeepsGoingAfterCycleError(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		calls++
		if calls >= 2 {
			cancel()
		}
		return errors.New("cycle failed")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if calls < 2 {
		t.Fatalf("loop must survive cycle errors, got %d calls", calls)
	}
}
