package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"catalogsync/internal/lock"
	"catalogsync/internal/observability"
	"catalogsync/internal/syncer"
)

const DefaultSchedule = "0 * * * *"

// Runner executes one reconciliation cycle.
type Runner interface {
	Run(ctx context.Context) (syncer.Result, error)
}

// Scheduler runs the Runner once on Start and then on every tick of a cron
// schedule. At most one run is in flight at a time; a trigger that finds a
// run in progress is skipped.
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule
	locker   lock.Locker
	logger   *zap.Logger
	now      func() time.Time

	slot sync.Mutex
	wg   sync.WaitGroup

	// mu orders wg.Add against the drain in Start.
	mu     sync.Mutex
	closed bool
}

type Option func(*Scheduler)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocker adds a lease shared with other replicas.
func WithLocker(l lock.Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New parses a standard five-field cron expression. An empty expression
// means hourly on the hour.
func New(runner Runner, expr string, opts ...Option) (*Scheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	s := &Scheduler{
		runner:   runner,
		schedule: schedule,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start triggers a run immediately, then on every schedule tick until ctx is
// done. It returns after the in-flight run, if any, has finished.
func (s *Scheduler) Start(ctx context.Context) {
	defer s.drain()

	s.TriggerAsync(ctx)
	for {
		next := s.schedule.Next(s.now())
		s.logger.Debug("next sync scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.TriggerAsync(ctx)
		}
	}
}

// Trigger runs one cycle unless another one holds the slot. It reports
// whether a cycle ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.acquire() {
		return false
	}
	defer s.slot.Unlock()
	return s.run(ctx)
}

// TriggerAsync claims the slot and runs the cycle in the background. It
// reports whether the slot was free. Once Start has returned, or is waiting
// for the last run, it refuses.
func (s *Scheduler) TriggerAsync(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Info("sync refused: scheduler stopped")
		return false
	}
	if !s.acquire() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.slot.Unlock()
		s.run(ctx)
	}()
	return true
}

func (s *Scheduler) drain() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) acquire() bool {
	if s.slot.TryLock() {
		return true
	}
	observability.SyncSkippedTotal.Inc()
	s.logger.Info("sync skipped: previous cycle still running")
	return false
}

// run must be called with the slot held.
func (s *Scheduler) run(ctx context.Context) (ran bool) {
	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx)
		switch {
		case err != nil:
			s.logger.Warn("sync lease unavailable, running without it", zap.Error(err))
		case !ok:
			observability.SyncSkippedTotal.Inc()
			s.logger.Info("sync skipped: lease held by another instance")
			return false
		default:
			defer release()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sync panicked", zap.Any("panic", r))
		}
	}()

	ran = true
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("sync failed", zap.Error(err))
	}
	return ran
}
