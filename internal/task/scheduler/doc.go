// Package scheduler implements the frame-driven timer task scheduler.
//
// Callers register callbacks with a countdown duration and an execution
// mode; the host loop calls Tick once per iteration. Each Tick decrements
// every pending countdown by the elapsed wall time and dispatches the ones
// that reach zero, inline for synchronous tasks and via the worker pool for
// parallel ones. Storage is a fixed-capacity arena, so the per-tick path
// performs no heap allocation and insertion failure (a full arena) is a
// plain error, never back-pressure.
//
// The API is single-driver: Add, Tick, Terminate and Snapshot must be
// serialized by the caller (typically they all happen on the host loop's
// goroutine).
package scheduler
