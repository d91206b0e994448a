// Package sched is a cooperative task runner: named recurring and one-shot
// tasks executed by a bounded worker pool, with at most one running instance
// per name. A tick that fires while the previous run is still going is
// dropped and logged, never queued.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultWorkers bounds concurrent handler executions.
const DefaultWorkers = 8

// Handler is one task invocation. A panicking or failing handler is logged
// and the schedule continues.
type Handler func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration // 0 for one-shot
	delay    time.Duration
	handler  Handler
	cancel   context.CancelFunc
	running  chan struct{} // capacity 1, token held while the handler runs
}

// Scheduler owns all registered tasks.
type Scheduler struct {
	workers int
	log     *slog.Logger

	// OnDrop, when set before Start, is called with the task name each
	// time a tick is dropped because the previous run is still active.
	OnDrop func(task string)

	mu      sync.Mutex
	tasks   map[string]*task
	started bool
	root    context.Context
	stop    context.CancelFunc
	sem     chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler with the given worker-pool size.
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scheduler{
		workers: workers,
		log:     slog.With("component", "sched"),
		tasks:   make(map[string]*task),
	}
}

// ScheduleRecurring registers a task firing every interval. The first run
// happens after one interval. Registration after Start is allowed.
func (s *Scheduler) ScheduleRecurring(name string, interval time.Duration, h Handler) error {
	if interval <= 0 {
		return fmt.Errorf("sched: %s: interval must be positive", name)
	}
	return s.register(&task{name: name, interval: interval, handler: h})
}

// ScheduleOnce registers a task firing once after delay, then removing itself.
func (s *Scheduler) ScheduleOnce(name string, delay time.Duration, h Handler) error {
	return s.register(&task{name: name, delay: delay, handler: h})
}

func (s *Scheduler) register(t *task) error {
	t.running = make(chan struct{}, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.name]; exists {
		return fmt.Errorf("sched: task %q already registered", t.name)
	}
	s.tasks[t.name] = t
	if s.started {
		s.launch(t)
	}
	return nil
}

// Cancel removes a task. Its in-flight run, if any, completes.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		if t.cancel != nil {
			t.cancel()
		}
		delete(s.tasks, name)
	}
}

// Start begins firing registered tasks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.root, s.stop = context.WithCancel(ctx)
	s.sem = make(chan struct{}, s.workers)
	for _, t := range s.tasks {
		s.launch(t)
	}
	s.log.Info("scheduler started", "tasks", len(s.tasks), "workers", s.workers)
}

// launch starts the ticker goroutine for one task. Caller holds s.mu.
func (s *Scheduler) launch(t *task) {
	ctx, cancel := context.WithCancel(s.root)
	t.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if t.interval == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.delay):
			}
			s.run(ctx, t)
			s.mu.Lock()
			delete(s.tasks, t.name)
			s.mu.Unlock()
			return
		}

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case t.running <- struct{}{}:
					s.wg.Add(1)
					go func() {
						defer s.wg.Done()
						defer func() { <-t.running }()
						s.run(ctx, t)
					}()
				default:
					s.log.Warn("tick dropped, previous run still active", "task", t.name)
					if s.OnDrop != nil {
						s.OnDrop(t.name)
					}
				}
			}
		}
	}()
}

// run executes the handler under the worker-pool semaphore.
func (s *Scheduler) run(ctx context.Context, t *task) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "task", t.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := t.handler(ctx); err != nil {
		s.log.Error("task failed", "task", t.name, "err", err,
			"elapsed", time.Since(start))
	}
}

// Stop cancels all schedules and waits up to grace for in-flight handlers.
// Handlers still running after the grace period are abandoned.
func (s *Scheduler) Stop(grace time.Duration) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.stop()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(grace):
		s.log.Warn("scheduler stop grace period expired, abandoning tasks")
	}
}
