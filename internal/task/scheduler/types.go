package scheduler

import "time"

// Mode selects where a fired task's callback runs.
type Mode uint8

const (
	// Synchronous tasks run on the goroutine driving Tick, before Tick
	// returns.
	Synchronous Mode = iota
	// Parallel tasks are handed to the worker pool. With zero workers the
	// scheduler downgrades them to synchronous execution.
	Parallel
)

func (m Mode) String() string {
	switch m {
	case Synchronous:
		return "synchronous"
	case Parallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Config controls the scheduler.
type Config struct {
	// Capacity is the maximum number of simultaneously pending tasks.
	// Exceeding it makes Add fail with ErrArenaFull; it never blocks or
	// evicts. <= 0 applies the default.
	Capacity int

	// Workers is the parallel pool size. 0 disables parallel dispatch and
	// forces every task synchronous regardless of its declared mode.
	Workers int
}

// pending is one timed task waiting in the arena.
type pending struct {
	fn        func()
	mode      Mode
	remaining time.Duration
}

// Snapshot is a lightweight view for diagnostics. Take it from the driver
// goroutine, like every other scheduler call.
type Snapshot struct {
	Capacity int
	Pending  int
	Free     int
	Workers  int

	Fired        uint64
	FiredInline  uint64
	FiredQueued  uint64
	RejectedFull uint64
	RejectedNil  uint64
	Discarded    uint64

	Terminated bool
}
