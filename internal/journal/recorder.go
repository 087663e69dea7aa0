package journal

import (
	"context"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
)

// Recorder drains scheduler lifecycle events from the bus into a Store.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log}
}

// Run blocks until ctx is done, appending fired and rejected task events.
// Append failures are logged and skipped; the bus already tolerates slow
// subscribers, so the recorder never applies backpressure to the scheduler.
func (r *Recorder) Run(ctx context.Context) {
	ch, unsub := r.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.TaskFired, eventbus.TaskRejected, eventbus.TaskDiscarded:
			default:
				continue
			}
			entry := Entry{
				At:       e.Time,
				Event:    e.Type,
				Mode:     e.Task.Mode,
				Duration: e.Task.Duration,
				Dispatch: e.Task.Dispatch,
				Error:    e.Task.Error,
			}
			if err := r.store.Append(ctx, entry); err != nil && ctx.Err() == nil {
				r.log.Warn("journal append failed", logx.Err(err))
			}
		}
	}
}
