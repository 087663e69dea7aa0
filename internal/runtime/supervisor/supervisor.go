// Package supervisor runs named background goroutines tied to a shared
// context, with panic recovery and a joinable stop.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	logx "ticksched/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Graceful stop: Cancel, then Wait for all goroutines to return
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    logx.Logger
}

func New(parent context.Context, log logx.Logger) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go starts fn under the supervisor's context. A panic is recovered and
// logged; a non-nil, non-cancellation error is logged at warn level.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("goroutine panic",
					logx.String("name", name),
					logx.Any("panic", rec),
					logx.Stack(string(debug.Stack())),
				)
			}
		}()

		s.log.Debug("goroutine started", logx.String("name", name))
		err := fn(s.ctx)
		if err != nil && s.ctx.Err() == nil {
			s.log.Warn("goroutine exited with error",
				logx.String("name", name),
				logx.Err(err),
			)
			return
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

// Cancel signals every goroutine to stop. It does not wait.
func (s *Supervisor) Cancel() { s.cancel() }

// Wait blocks until all goroutines have returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor wait: %w", ctx.Err())
	}
}
