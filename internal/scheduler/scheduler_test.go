package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalogsync/internal/syncer"
)

type stubRunner struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	block    chan struct{}
	started  chan struct{}
	err      error
	panicMsg string
}

func (r *stubRunner) Run(context.Context) (syncer.Result, error) {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		old := r.maxSeen.Load()
		if n <= old || r.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return syncer.Result{}, r.err
}

type stubLocker struct {
	ok       bool
	err      error
	released atomic.Int32
}

func (l *stubLocker) Acquire(context.Context) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, false, l.err
	}
	return func() { l.released.Add(1) }, true, nil
}

const never = "0 0 1 1 *"

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(&stubRunner{}, "every hour")
	require.ErrorContains(t, err, "parse schedule")

	s, err := New(&stubRunner{}, "")
	require.NoError(t, err)
	require.NotNil(t, s.schedule)
}

func TestNewDoesNotRun(t *testing.T) {
	runner := &stubRunner{}
	_, err := New(runner, never)
	require.NoError(t, err)
	require.Zero(t, runner.calls.Load())
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	runner := &stubRunner{}
	s, err := New(runner, never)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStartFiresOnSchedule(t *testing.T) {
	runner := &stubRunner{err: errors.New("source down")}
	s, err := New(runner, "@every 1s")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	require.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond,
		"failed runs must not stop the schedule")
}

func TestTriggerDoesNotOverlap(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := New(runner, never)
	require.NoError(t, err)

	ran := make(chan bool, 1)
	go func() { ran <- s.Trigger(context.Background()) }()
	<-runner.started

	var wg sync.WaitGroup
	skipped := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			skipped <- s.Trigger(context.Background())
		}()
	}
	wg.Wait()
	close(skipped)
	for got := range skipped {
		require.False(t, got)
	}

	close(runner.block)
	require.True(t, <-ran)

	require.EqualValues(t, 1, runner.calls.Load())
	require.EqualValues(t, 1, runner.maxSeen.Load())

	runner.started = nil
	require.True(t, s.Trigger(context.Background()), "slot is free again")
}

func TestTriggerSurvivesFailures(t *testing.T) {
	runner := &stubRunner{panicMsg: "boom"}
	s, err := New(runner, never)
	require.NoError(t, err)

	require.NotPanics(t, func() { s.Trigger(context.Background()) })

	runner.panicMsg = ""
	runner.err = errors.New("source down")
	require.True(t, s.Trigger(context.Background()))
	require.EqualValues(t, 2, runner.calls.Load())
}

func TestTriggerHonoursLocker(t *testing.T) {
	runner := &stubRunner{}

	held := &stubLocker{ok: false}
	s, err := New(runner, never, WithLocker(held))
	require.NoError(t, err)
	require.False(t, s.Trigger(context.Background()))
	require.Zero(t, runner.calls.Load())

	free := &stubLocker{ok: true}
	s, err = New(runner, never, WithLocker(free))
	require.NoError(t, err)
	require.True(t, s.Trigger(context.Background()))
	require.EqualValues(t, 1, free.released.Load())

	broken := &stubLocker{err: errors.New("redis down")}
	s, err = New(runner, never, WithLocker(broken))
	require.NoError(t, err)
	require.True(t, s.Trigger(context.Background()), "lease errors degrade to the local slot")
	require.EqualValues(t, 2, runner.calls.Load())
}

func TestTriggerAsyncHoldsSlotUntilDone(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := New(runner, never)
	require.NoError(t, err)

	require.True(t, s.TriggerAsync(context.Background()))
	<-runner.started
	require.False(t, s.TriggerAsync(context.Background()))
	require.False(t, s.Trigger(context.Background()))

	close(runner.block)
	s.wg.Wait()

	runner.started = nil
	require.True(t, s.Trigger(context.Background()))
	require.EqualValues(t, 1, runner.maxSeen.Load())
}

func TestTriggerAsyncRefusedAfterStop(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := New(runner, never)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	<-runner.started

	// manual triggers racing the shutdown
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s.TriggerAsync(context.Background())
				}
			}
		}()
	}

	cancel()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.closed
	}, time.Second, 5*time.Millisecond)
	close(runner.block)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	close(stop)
	wg.Wait()

	require.False(t, s.TriggerAsync(context.Background()), "slot is free but the scheduler has stopped")
	require.EqualValues(t, 1, runner.calls.Load())
}
