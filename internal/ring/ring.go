// Package ring implements a bounded single-producer/single-consumer ring
// buffer, grounded on orig:src/ingest/spsc_ring.hpp. Capacity is rounded up
// to the next power of two so index masking replaces modulo. TryPush/TryPop
// never block and never allocate once constructed.
package ring

import "sync/atomic"

// cacheLinePad separates the producer's and consumer's hot counters onto
// distinct cache lines, matching the original's "two counters on separate
// cache lines" layout.
type cacheLinePad [64 - 8]byte

// SPSC is a bounded single-producer/single-consumer ring of T. Safe for
// exactly one producer goroutine and one consumer goroutine operating
// concurrently; not safe for multiple producers or multiple consumers.
type SPSC[T any] struct {
	mask uint64
	buf  []T

	head atomic.Uint64
	_    cacheLinePad
	tail atomic.Uint64
	_    cacheLinePad
}

// New constructs an SPSC ring whose usable capacity is the next power of
// two greater than or equal to capacityHint (minimum 2).
func New[T any](capacityHint int) *SPSC[T] {
	cap := nextPowerOfTwo(capacityHint)
	return &SPSC[T]{
		mask: uint64(cap - 1),
		buf:  make([]T, cap),
	}
}

func nextPowerOfTwo(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// TryPush attempts to enqueue value. Returns false if the ring is full; the
// caller is expected to count the drop and move on (never blocks).
func (r *SPSC[T]) TryPush(value T) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false
	}
	r.buf[head&r.mask] = value
	r.head.Store(head + 1)
	return true
}

// TryPop attempts to dequeue into *out. Returns false if the ring is empty.
func (r *SPSC[T]) TryPop(out *T) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return false
	}
	*out = r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return true
}

// Len returns an approximate size; exact only when queried by a thread
// that is neither the producer nor the consumer, otherwise racy-but-safe
// (matches the original's documented "approximate when queried
// concurrently" contract).
func (r *SPSC[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Cap returns the ring's fixed usable capacity.
func (r *SPSC[T]) Cap() int { return len(r.buf) }

// Empty reports whether the ring currently has no pending items.
func (r *SPSC[T]) Empty() bool {
	return r.head.Load() == r.tail.Load()
}
