package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunOnStartAndStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	sched := New(Options{Interval: time.Hour, RunOnStart: true}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx, func(ctx context.Context, slot time.Time) error {
			calls.Add(1)
			cancel()
			return errors.New("job errors are logged, not returned")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	if calls.Load() != 1 {
		t.Fatalf("expected one immediate run, got %d", calls.Load())
	}
}

func TestRunRepeats(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var calls atomic.Int32
	sched := New(Options{Interval: 20 * time.Millisecond}, zerolog.Nop())

	err := sched.Run(ctx, func(ctx context.Context, slot time.Time) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 runs, got %d", calls.Load())
	}
}

func TestNextSlotAligned(t *testing.T) {
	sched := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 6, 15, 10, 20, 0, 0, time.UTC)

	if got := sched.nextSlot(now); !got.Equal(time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next slot %v", got)
	}
	onBoundary := time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC)
	if got := sched.nextSlot(onBoundary); !got.Equal(onBoundary.Add(time.Hour)) {
		t.Fatalf("slot on boundary must move forward, got %v", got)
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
