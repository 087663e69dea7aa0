// Package runner implements the parallel task runner: a fixed pool of
// worker goroutines draining a condition-variable-guarded queue.
package runner

import (
	"runtime/debug"
	"sync"

	logx "ticksched/pkg/logx"
)

// Runner owns a fixed pool of workers and the queue they drain.
//
// Submit never executes a callback on the caller's goroutine and holds the
// queue lock only for the append. Workers run callbacks outside the lock, so
// a long-running task never blocks enqueueing or other workers.
type Runner struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []func()

	// guarded by mu; false once Terminate has been called
	running bool

	wg      sync.WaitGroup
	workers int
	log     logx.Logger
}

// New spawns a pool of worker goroutines. workers may be 0, in which case
// the runner accepts no work and callers must execute tasks themselves.
func New(workers int, log logx.Logger) *Runner {
	if workers < 0 {
		workers = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runner{workers: workers, running: true, log: log}
	r.cond = sync.NewCond(&r.mu)
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// Workers returns the fixed pool size.
func (r *Runner) Workers() int { return r.workers }

// Submit enqueues fn and wakes one worker. It must not be called after
// Terminate.
func (r *Runner) Submit(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	r.cond.Signal()
}

// Terminate flips the running flag, wakes every worker, and joins them.
// Callbacks still queued at this point are dropped without execution; the
// count is logged. Safe to call more than once.
func (r *Runner) Terminate() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	dropped := len(r.queue)
	r.queue = nil
	r.mu.Unlock()

	r.cond.Broadcast()
	r.wg.Wait()

	if dropped > 0 {
		r.log.Warn("queued callbacks dropped at terminate", logx.Int("dropped", dropped))
	}
	r.log.Debug("runner terminated", logx.Int("workers", r.workers))
}

func (r *Runner) worker(idx int) {
	defer r.wg.Done()
	r.log.Debug("worker started", logx.Int("worker", idx))

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && r.running {
			// Spurious wakeups land back here: an empty queue means
			// re-wait, never an error.
			r.cond.Wait()
		}
		if !r.running {
			r.mu.Unlock()
			break
		}
		// Exactly one item per wake cycle.
		fn := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.runOne(idx, fn)
	}

	r.log.Debug("worker stopped", logx.Int("worker", idx))
}

// runOne executes fn outside the queue lock with a panic boundary, so one
// bad task cannot kill its worker or the pool.
func (r *Runner) runOne(idx int, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("task panic",
				logx.Int("worker", idx),
				logx.Any("panic", rec),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn()
}
