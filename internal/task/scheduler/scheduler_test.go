package scheduler

import (
	"errors"
	"testing"
	"time"

	logx "ticksched/pkg/logx"
)

// fakeClock drives the scheduler's monotonic clock deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler(cfg Config) (*Scheduler, *fakeClock) {
	s := New(cfg, logx.Nop(), nil)
	c := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s.now = c.now
	s.last = c.t
	return s, c
}

func checkConservation(t *testing.T, s *Scheduler) {
	t.Helper()
	snap := s.Snapshot()
	if snap.Pending+snap.Free != snap.Capacity {
		t.Fatalf("pending(%d) + free(%d) != capacity(%d)", snap.Pending, snap.Free, snap.Capacity)
	}
}

// remainingOf probes the pending countdowns without disturbing the arena.
func remainingOf(s *Scheduler) []time.Duration {
	var out []time.Duration
	s.tasks.ForEach(func(p *pending) bool {
		out = append(out, p.remaining)
		return false
	})
	s.tasks.Retire()
	return out
}

func TestMonotonicCountdown(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 4})
	defer s.Terminate(false)

	fired := 0
	if err := s.Add(500*time.Millisecond, func() { fired++ }, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// 200ms + 200ms: not yet, and the countdown shrinks by exactly the
	// elapsed amount each tick.
	clk.advance(200 * time.Millisecond)
	s.Tick()
	if fired != 0 {
		t.Fatal("fired early")
	}
	if rem := remainingOf(s); len(rem) != 1 || rem[0] != 300*time.Millisecond {
		t.Fatalf("remaining = %v, want [300ms]", rem)
	}

	clk.advance(200 * time.Millisecond)
	s.Tick()
	if fired != 0 {
		t.Fatal("fired early")
	}
	if rem := remainingOf(s); len(rem) != 1 || rem[0] != 100*time.Millisecond {
		t.Fatalf("remaining = %v, want [100ms]", rem)
	}

	// Third 200ms tick (total 600ms >= 500ms): fires exactly once.
	clk.advance(200 * time.Millisecond)
	s.Tick()
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// Fired slot was retired; nothing left to fire.
	clk.advance(time.Second)
	s.Tick()
	if fired != 1 {
		t.Fatalf("fired = %d after extra tick, want 1", fired)
	}
	checkConservation(t, s)
}

func TestCapacityScenario(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 2, Workers: 1})

	aRan := false
	bGate := make(chan struct{})
	bDone := make(chan struct{})

	if err := s.Add(time.Second, func() { aRan = true }, Synchronous); err != nil {
		t.Fatalf("Add A: %v", err)
	}
	if err := s.Add(time.Second, func() { <-bGate; close(bDone) }, Parallel); err != nil {
		t.Fatalf("Add B: %v", err)
	}
	if err := s.Add(time.Second, func() {}, Synchronous); !errors.Is(err, ErrArenaFull) {
		t.Fatalf("Add C = %v, want ErrArenaFull", err)
	}
	checkConservation(t, s)

	clk.advance(time.Second)
	s.Tick()

	// A ran inline, before Tick returned.
	if !aRan {
		t.Fatal("synchronous task did not run during Tick")
	}
	// B was queued, not executed on the driver goroutine: it is still
	// blocked on its gate.
	select {
	case <-bDone:
		t.Fatal("parallel task completed on the driver goroutine")
	default:
	}

	// Both slots were retired, so C fits now.
	if err := s.Add(time.Second, func() {}, Synchronous); err != nil {
		t.Fatalf("Add C after retire: %v", err)
	}
	checkConservation(t, s)

	close(bGate)
	select {
	case <-bDone:
	case <-time.After(2 * time.Second):
		t.Fatal("parallel task never ran on a worker")
	}

	snap := s.Snapshot()
	if snap.FiredInline != 1 || snap.FiredQueued != 1 {
		t.Fatalf("fired inline=%d queued=%d, want 1/1", snap.FiredInline, snap.FiredQueued)
	}

	s.Terminate(false)
}

func TestParallelDowngradedWithoutWorkers(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 2, Workers: 0})
	defer s.Terminate(false)

	ran := false
	if err := s.Add(100*time.Millisecond, func() { ran = true }, Parallel); err != nil {
		t.Fatalf("Add: %v", err)
	}

	clk.advance(100 * time.Millisecond)
	s.Tick()
	if !ran {
		t.Fatal("parallel task did not run inline with zero workers")
	}
	if snap := s.Snapshot(); snap.FiredInline != 1 {
		t.Fatalf("FiredInline = %d, want 1", snap.FiredInline)
	}
}

func TestShortDurationFiresNextTick(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 2})
	defer s.Terminate(false)

	ran := false
	if err := s.Add(0, func() { ran = true }, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// No special immediate path: a zero countdown waits for the next Tick,
	// then fires even if no time has passed.
	if ran {
		t.Fatal("task ran before any Tick")
	}
	clk.advance(0)
	s.Tick()
	if !ran {
		t.Fatal("zero-duration task did not fire on the next Tick")
	}
}

func TestAtMostOnceWithFinishPending(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 4})

	firedCount := 0
	pendingCount := 0
	if err := s.Add(100*time.Millisecond, func() { firedCount++ }, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(time.Hour, func() { pendingCount++ }, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}

	clk.advance(time.Second)
	s.Tick()

	// finishPending forces the hour-long task; the already-fired one must
	// not run again.
	s.Terminate(true)
	if firedCount != 1 {
		t.Fatalf("fired task ran %d times, want 1", firedCount)
	}
	if pendingCount != 1 {
		t.Fatalf("pending task ran %d times under finishPending, want 1", pendingCount)
	}
	checkConservation(t, s)
}

func TestTerminateDiscardsPending(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{Capacity: 4})

	ran := false
	if err := s.Add(time.Hour, func() { ran = true }, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Terminate(false)
	if ran {
		t.Fatal("discarded task ran")
	}
	snap := s.Snapshot()
	if snap.Discarded != 1 {
		t.Fatalf("Discarded = %d, want 1", snap.Discarded)
	}
	if !snap.Terminated {
		t.Fatal("snapshot does not report terminated")
	}
	checkConservation(t, s)
}

func TestNilCallbackRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{Capacity: 2})
	defer s.Terminate(false)

	if err := s.Add(time.Second, nil, Synchronous); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("Add(nil) = %v, want ErrNilCallback", err)
	}
	// Scheduler state unchanged.
	snap := s.Snapshot()
	if snap.Pending != 0 || snap.RejectedNil != 1 {
		t.Fatalf("pending=%d rejectedNil=%d, want 0/1", snap.Pending, snap.RejectedNil)
	}
}

func TestAddAfterTerminate(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{Capacity: 2})
	s.Terminate(false)
	if err := s.Add(time.Second, func() {}, Synchronous); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Add after terminate = %v, want ErrTerminated", err)
	}
}

func TestTerminateJoinsWorkers(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 4, Workers: 2})

	done := make(chan struct{})
	if err := s.Add(10*time.Millisecond, func() { close(done) }, Parallel); err != nil {
		t.Fatalf("Add: %v", err)
	}
	clk.advance(20 * time.Millisecond)
	s.Tick()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("parallel task never ran")
	}

	// Returns only once the pool is joined and is safe to repeat.
	s.Terminate(false)
	s.Terminate(false)
}

func TestAddFromCallbackDeferredToNextTick(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 4})
	defer s.Terminate(false)

	innerFired := 0
	if err := s.Add(100*time.Millisecond, func() {
		if err := s.Add(300*time.Millisecond, func() { innerFired++ }, Synchronous); err != nil {
			t.Errorf("Add from callback: %v", err)
		}
	}, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// The outer task fires; the task it schedules joins the arena only
	// after this Tick and keeps its full countdown despite the large
	// elapsed time.
	clk.advance(time.Second)
	s.Tick()
	if innerFired != 0 {
		t.Fatal("task scheduled during Tick fired in the same Tick")
	}
	if rem := remainingOf(s); len(rem) != 1 || rem[0] != 300*time.Millisecond {
		t.Fatalf("remaining = %v, want [300ms]", rem)
	}
	checkConservation(t, s)

	clk.advance(300 * time.Millisecond)
	s.Tick()
	if innerFired != 1 {
		t.Fatalf("inner task fired %d times, want 1", innerFired)
	}
}

func TestAddFromCallbackSeesPreRetireCapacity(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 1})
	defer s.Terminate(false)

	var addErr error
	if err := s.Add(time.Millisecond, func() {
		// The firing task's slot is not retired yet, so the arena is
		// still full from inside the callback.
		addErr = s.Add(time.Second, func() {}, Synchronous)
	}, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}

	clk.advance(time.Millisecond)
	s.Tick()
	if !errors.Is(addErr, ErrArenaFull) {
		t.Fatalf("Add during Tick at capacity = %v, want ErrArenaFull", addErr)
	}
	// The slot freed once the Tick finished.
	if err := s.Add(time.Second, func() {}, Synchronous); err != nil {
		t.Fatalf("Add after Tick: %v", err)
	}
	checkConservation(t, s)
}

func TestNegativeDurationClamped(t *testing.T) {
	t.Parallel()
	s, clk := newTestScheduler(Config{Capacity: 2})
	defer s.Terminate(false)

	ran := false
	if err := s.Add(-time.Second, func() { ran = true }, Synchronous); err != nil {
		t.Fatalf("Add: %v", err)
	}
	clk.advance(time.Millisecond)
	s.Tick()
	if !ran {
		t.Fatal("negative-duration task did not fire on next Tick")
	}
}
