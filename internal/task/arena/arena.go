// Package arena provides a fixed-capacity slot store with O(1) insertion,
// deferred removal, and allocation-free iteration.
//
// The store is built for once-per-frame hot paths: a backing slice holds the
// elements, a stack of free indices makes insertion constant-time, and a set
// of allocated indices drives iteration. Removal is two-phase: the visitor
// marks a slot during ForEach and the slot is returned to the free list by
// Retire, so iteration never mutates the set it is walking.
//
// An Arena is not safe for concurrent use; it is meant to be owned by a
// single driver goroutine.
package arena

// Arena is a fixed-capacity store of T addressed by slot index.
type Arena[T any] struct {
	slots     []T
	allocated map[int]struct{}

	// Free list implemented as a stack (probably better cache behavior
	// than re-scanning for holes).
	free []int

	// Slot indices marked during the current ForEach pass.
	removals []int
}

// New returns an arena holding at most capacity elements. All bookkeeping
// storage is allocated up front; Insert/ForEach/Retire do no further
// allocation. A capacity <= 0 is treated as 1.
func New[T any](capacity int) *Arena[T] {
	if capacity <= 0 {
		capacity = 1
	}
	a := &Arena[T]{
		slots:     make([]T, capacity),
		allocated: make(map[int]struct{}, capacity),
		free:      make([]int, capacity),
		removals:  make([]int, 0, capacity),
	}
	// Initially every index is free.
	for i := range a.free {
		a.free[i] = i
	}
	return a
}

// Insert stores v in a free slot. It reports false, leaving the arena
// unchanged, when capacity is exhausted; the caller retains v.
func (a *Arena[T]) Insert(v T) bool {
	n := len(a.free)
	if n == 0 {
		return false
	}
	idx := a.free[n-1]
	a.free = a.free[:n-1]
	a.slots[idx] = v
	a.allocated[idx] = struct{}{}
	return true
}

// ForEach invokes visit once per allocated slot, in no particular order.
// The visitor receives a pointer so it may mutate the element in place;
// returning true marks the slot for removal. The allocation set is not
// modified until Retire runs.
func (a *Arena[T]) ForEach(visit func(*T) bool) {
	for idx := range a.allocated {
		if visit(&a.slots[idx]) {
			a.removals = append(a.removals, idx)
		}
	}
}

// Retire returns every slot marked during the preceding ForEach to the free
// list and clears the mark buffer. Call it exactly once after each ForEach.
func (a *Arena[T]) Retire() {
	var zero T
	for _, idx := range a.removals {
		delete(a.allocated, idx)
		a.slots[idx] = zero // drop references held by the element
		a.free = append(a.free, idx)
	}
	a.removals = a.removals[:0]
}

// Len returns the number of allocated slots.
func (a *Arena[T]) Len() int { return len(a.allocated) }

// FreeCount returns the number of free slots.
func (a *Arena[T]) FreeCount() int { return len(a.free) }

// Cap returns the fixed capacity.
func (a *Arena[T]) Cap() int { return len(a.slots) }
