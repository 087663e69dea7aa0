package eventbus

import (
	"sync"
	"time"
)

// Well-known event types published by the scheduler.
const (
	TaskScheduled       = "task.scheduled"
	TaskFired           = "task.fired"
	TaskRejected        = "task.rejected"
	TaskDiscarded       = "task.discarded"
	SchedulerTerminated = "scheduler.terminated"
)

// TaskEvent describes one scheduled task for lifecycle events.
//
// Dispatch is "inline" when the callback ran on the driver goroutine and
// "queued" when it was handed to the parallel runner.
type TaskEvent struct {
	Mode     string        `json:"mode,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Dispatch string        `json:"dispatch,omitempty"`
	Pending  int           `json:"pending,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
type Event struct {
	Type string
	Time time.Time
	Task TaskEvent
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends happen under the read lock; Unsubscribe closes under the write
	// lock, so a send can never race a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is slow; drop rather than block the driver.
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}
