package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRecurringFires(t *testing.T) {
	s := New(2)
	var n atomic.Int32
	if err := s.ScheduleRecurring("counter", 10*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)

	deadline := time.After(2 * time.Second)
	for n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before the deadline", n.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRecurringRejectsBadInterval(t *testing.T) {
	s := New(1)
	if err := s.ScheduleRecurring("bad", 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	s := New(1)
	h := func(ctx context.Context) error { return nil }
	if err := s.ScheduleRecurring("dup", time.Second, h); err != nil {
		t.Fatal(err)
	}
	if err := s.ScheduleRecurring("dup", time.Second, h); err == nil {
		t.Error("expected error for duplicate name")
	}
	if err := s.ScheduleOnce("dup", time.Second, h); err == nil {
		t.Error("expected error for duplicate one-shot name")
	}
}

func TestOverlappingTickDropped(t *testing.T) {
	s := New(4)
	var started, finished, dropped atomic.Int32
	s.OnDrop = func(task string) {
		if task == "slow" {
			dropped.Add(1)
		}
	}
	release := make(chan struct{})

	if err := s.ScheduleRecurring("slow", 10*time.Millisecond, func(ctx context.Context) error {
		started.Add(1)
		<-release
		finished.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)

	// Let several ticks fire while the first run blocks.
	for started.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	if got := started.Load(); got != 1 {
		t.Fatalf("started = %d, want 1 while the first run holds the slot", got)
	}
	if dropped.Load() == 0 {
		t.Error("no dropped ticks reported while the run held the slot")
	}
	close(release)

	// Runs resume once the slot frees up.
	deadline := time.After(2 * time.Second)
	for started.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("no run after the slot was released")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduleOnceRemovesItself(t *testing.T) {
	s := New(2)
	var n atomic.Int32
	if err := s.ScheduleOnce("boot", 5*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)

	deadline := time.After(2 * time.Second)
	for n.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("one-shot never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The name is free again after the run.
	ok := false
	for i := 0; i < 100 && !ok; i++ {
		if err := s.ScheduleOnce("boot", time.Hour, func(ctx context.Context) error { return nil }); err == nil {
			ok = true
		} else {
			time.Sleep(5 * time.Millisecond)
		}
	}
	if !ok {
		t.Error("one-shot did not remove itself")
	}

	time.Sleep(20 * time.Millisecond)
	if n.Load() != 1 {
		t.Errorf("one-shot ran %d times", n.Load())
	}
}

func TestCancelStopsTask(t *testing.T) {
	s := New(2)
	var n atomic.Int32
	if err := s.ScheduleRecurring("gone", 10*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)

	deadline := time.After(2 * time.Second)
	for n.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("task never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Cancel("gone")
	base := n.Load()
	time.Sleep(50 * time.Millisecond)
	// One tick may have been in flight during the cancel; no more after that.
	if got := n.Load(); got > base+1 {
		t.Errorf("task ran %d times after cancel", got-base)
	}
}

func TestFailingHandlerKeepsSchedule(t *testing.T) {
	s := New(2)
	var n atomic.Int32
	if err := s.ScheduleRecurring("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return errors.New("boom")
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)

	deadline := time.After(2 * time.Second)
	for n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs; failures should not stop the schedule", n.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPanickingHandlerKeepsSchedule(t *testing.T) {
	s := New(2)
	var n atomic.Int32
	if err := s.ScheduleRecurring("panicky", 10*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		panic("boom")
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)

	deadline := time.After(2 * time.Second)
	for n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs; panics should not stop the schedule", n.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopWaitsForInFlight(t *testing.T) {
	s := New(2)
	done := make(chan struct{})
	if err := s.ScheduleOnce("slow-stop", 0, func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		close(done)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	time.Sleep(10 * time.Millisecond) // let the one-shot begin
	s.Stop(time.Second)

	select {
	case <-done:
	default:
		t.Error("Stop returned before the in-flight handler finished")
	}
}
