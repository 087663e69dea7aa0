package scheduler

import (
	"time"

	"ticksched/internal/eventbus"
	"ticksched/internal/task/arena"
	"ticksched/internal/task/runner"
	logx "ticksched/pkg/logx"
)

const defaultCapacity = 64

// Scheduler orchestrates the task arena and the parallel runner.
//
// One driver goroutine calls Add/Tick/Terminate; the methods are not safe
// for concurrent callers. The runner's workers are the only other concurrent
// actors and they never touch the arena, which is why the arena needs no
// locking.
type Scheduler struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	tasks *arena.Arena[pending]
	pool  *runner.Runner

	// inTick guards the arena's iteration: Add calls made by a callback
	// running inside Tick land in deferred and are inserted after Retire.
	inTick   bool
	deferred []pending

	// now is the monotonic clock source; tests swap it out.
	now  func() time.Time
	last time.Time

	terminated bool

	firedInline  uint64
	firedQueued  uint64
	rejectedFull uint64
	rejectedNil  uint64
	discarded    uint64
}

// New builds a scheduler. A zero-worker config disables parallel dispatch
// entirely (no pool goroutines are spawned). bus may be nil.
func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Scheduler{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		tasks: arena.New[pending](cfg.Capacity),
		now:   time.Now,
	}
	if cfg.Workers > 0 {
		s.pool = runner.New(cfg.Workers, log.With(logx.String("comp", "runner")))
	}
	s.last = s.now()

	s.log.Info("scheduler ready",
		logx.Int("capacity", cfg.Capacity),
		logx.Int("workers", cfg.Workers),
	)
	return s
}

// Add registers fn to fire once d has elapsed across future Ticks. It never
// blocks; a full arena is reported as ErrArenaFull and the caller keeps the
// task. A duration shorter than one tick interval fires on the next Tick.
//
// Add may be called from a callback executing inside Tick; such a task
// joins the arena only after the current Tick completes (its countdown is
// not decremented by the Tick that scheduled it), and slots being retired
// by that same Tick do not count as free yet.
func (s *Scheduler) Add(d time.Duration, fn func(), mode Mode) error {
	if s.terminated {
		return ErrTerminated
	}
	if fn == nil {
		s.rejectedNil++
		s.publish(eventbus.TaskRejected, eventbus.TaskEvent{
			Mode: mode.String(), Duration: d, Error: "nil callback",
		})
		return ErrNilCallback
	}
	if d < 0 {
		d = 0
	}

	p := pending{fn: fn, mode: mode, remaining: d}
	if s.inTick {
		// The arena's allocation set may not grow while Tick iterates it.
		// Reserve a free slot now and insert once the sweep is done.
		if s.tasks.FreeCount() <= len(s.deferred) {
			return s.rejectFull(d, mode)
		}
		s.deferred = append(s.deferred, p)
	} else if !s.tasks.Insert(p) {
		return s.rejectFull(d, mode)
	}

	s.publish(eventbus.TaskScheduled, eventbus.TaskEvent{
		Mode: mode.String(), Duration: d, Pending: s.tasks.Len() + len(s.deferred),
	})
	return nil
}

func (s *Scheduler) rejectFull(d time.Duration, mode Mode) error {
	s.rejectedFull++
	s.publish(eventbus.TaskRejected, eventbus.TaskEvent{
		Mode: mode.String(), Duration: d, Pending: s.tasks.Len() + len(s.deferred), Error: "arena full",
	})
	return ErrArenaFull
}

// Tick advances every pending countdown by the wall time elapsed since the
// previous Tick and dispatches the ones that reach zero: synchronous tasks
// (and all tasks when the pool is disabled) run inline before Tick returns;
// parallel tasks are queued on the runner. Fired slots are retired
// afterwards in a single sweep.
//
// The host loop chooses the cadence; the scheduler does no work between
// calls and owns no timer goroutine.
func (s *Scheduler) Tick() {
	now := s.now()
	elapsed := now.Sub(s.last)
	if elapsed < 0 {
		elapsed = 0
	}

	s.inTick = true
	s.tasks.ForEach(func(t *pending) bool {
		if t.remaining > elapsed {
			t.remaining -= elapsed
			return false
		}
		t.remaining = 0
		s.dispatch(t.fn, t.mode, 0)
		return true
	})
	s.tasks.Retire()
	s.inTick = false

	// Tasks scheduled by callbacks during the sweep: slots were reserved
	// against the pre-Retire free count, so these inserts cannot fail.
	for _, p := range s.deferred {
		s.tasks.Insert(p)
	}
	s.deferred = s.deferred[:0]

	s.last = now
}

// Terminate shuts the scheduler down. With finishPending true, every task
// still in the arena executes immediately (per its mode); with false they
// are discarded — a documented, silent data-loss path beyond the warn log.
// Either way the runner's workers are joined before Terminate returns.
func (s *Scheduler) Terminate(finishPending bool) {
	if s.terminated {
		return
	}
	s.terminated = true

	remaining := s.tasks.Len()
	if finishPending {
		s.tasks.ForEach(func(t *pending) bool {
			s.dispatch(t.fn, t.mode, t.remaining)
			return true
		})
		s.tasks.Retire()
	} else {
		s.tasks.ForEach(func(t *pending) bool {
			s.publish(eventbus.TaskDiscarded, eventbus.TaskEvent{
				Mode: t.mode.String(), Duration: t.remaining,
			})
			return true
		})
		s.tasks.Retire()
		s.discarded += uint64(remaining)
		if remaining > 0 {
			s.log.Warn("pending tasks discarded at terminate", logx.Int("discarded", remaining))
		}
	}

	if s.pool != nil {
		s.pool.Terminate()
	}

	s.publish(eventbus.SchedulerTerminated, eventbus.TaskEvent{Pending: remaining})
	s.log.Info("scheduler terminated",
		logx.Bool("finish_pending", finishPending),
		logx.Int("remaining", remaining),
	)
}

// Snapshot returns current counters and occupancy.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		Capacity:     s.tasks.Cap(),
		Pending:      s.tasks.Len(),
		Free:         s.tasks.FreeCount(),
		Workers:      s.cfg.Workers,
		Fired:        s.firedInline + s.firedQueued,
		FiredInline:  s.firedInline,
		FiredQueued:  s.firedQueued,
		RejectedFull: s.rejectedFull,
		RejectedNil:  s.rejectedNil,
		Discarded:    s.discarded,
		Terminated:   s.terminated,
	}
}

// dispatch runs or delegates one fired task. requested carries the unexpired
// countdown only for event reporting during Terminate(finishPending).
func (s *Scheduler) dispatch(fn func(), mode Mode, requested time.Duration) {
	if mode == Parallel && s.pool != nil {
		s.pool.Submit(fn)
		s.firedQueued++
		s.publish(eventbus.TaskFired, eventbus.TaskEvent{
			Mode: mode.String(), Duration: requested, Dispatch: "queued",
		})
		return
	}
	fn()
	s.firedInline++
	s.publish(eventbus.TaskFired, eventbus.TaskEvent{
		Mode: mode.String(), Duration: requested, Dispatch: "inline",
	})
}

func (s *Scheduler) publish(typ string, te eventbus.TaskEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Task: te})
}
