// Package wheel implements a single-level hashed timing wheel with
// generation-counter-based lazy cancellation, per spec.md §4.6, grounded on
// orig:src/util/wheel_timer.hpp.
package wheel

// NumBuckets is the fixed bucket count (power of two for fast masking).
const NumBuckets = 256

// TickNanos is the fixed tick width.
const TickNanos = 1_000_000 // 1ms

// BucketCapacity bounds entries per bucket to keep scheduling O(1)
// worst-case.
const BucketCapacity = 1024

// Entry is a scheduled deadline.
type Entry struct {
	Fingerprint uint64
	Generation  uint32
	DeadlineNanos int64
}

// Stats tracks wheel operation counts for observability.
type Stats struct {
	Scheduled        uint64
	Expired          uint64
	Rescheduled      uint64
	OverflowDropped  uint64
}

// Wheel is a fixed NumBuckets-slot hashed timing wheel.
type Wheel struct {
	buckets     [NumBuckets][]Entry
	currentTick int64
	lastPoll    int64
	stats       Stats
}

// New constructs a Wheel starting at startNanos.
func New(startNanos int64) *Wheel {
	w := &Wheel{
		currentTick: startNanos / TickNanos,
		lastPoll:    startNanos,
	}
	for i := range w.buckets {
		w.buckets[i] = make([]Entry, 0, 16)
	}
	return w
}

func bucketMask(idx int64) int { return int(idx & (NumBuckets - 1)) }

// Schedule inserts an entry for fingerprint/generation at deadlineNanos.
// Returns false if the target bucket has overflowed BucketCapacity; the
// caller should fall back to immediate emission per spec.md §4.6/§4.8.
func (w *Wheel) Schedule(fingerprint uint64, generation uint32, deadlineNanos int64) bool {
	w.stats.Scheduled++

	deadlineTick := deadlineNanos / TickNanos
	var deltaTicks int64
	if deadlineTick > w.currentTick {
		deltaTicks = deadlineTick - w.currentTick
	}
	if deltaTicks >= NumBuckets {
		deltaTicks = NumBuckets - 1
	}

	idx := bucketMask(w.currentTick + deltaTicks)
	if len(w.buckets[idx]) >= BucketCapacity {
		w.stats.OverflowDropped++
		return false
	}
	w.buckets[idx] = append(w.buckets[idx], Entry{
		Fingerprint:   fingerprint,
		Generation:    generation,
		DeadlineNanos: deadlineNanos,
	})
	return true
}

// PollExpired advances the wheel to nowNanos, invoking onFire(fingerprint,
// generation) for every entry whose deadline has passed. Far-future
// clamped entries encountered before their tick are transparently
// re-scheduled.
func (w *Wheel) PollExpired(nowNanos int64, onFire func(fingerprint uint64, generation uint32)) {
	nowTick := nowNanos / TickNanos

	for w.currentTick < nowTick {
		idx := bucketMask(w.currentTick)
		bucket := w.buckets[idx]

		kept := bucket[:0]
		for _, e := range bucket {
			if e.DeadlineNanos <= nowNanos {
				onFire(e.Fingerprint, e.Generation)
				w.stats.Expired++
				continue
			}
			// Far-future entry not yet due: re-schedule, don't keep here.
			w.stats.Scheduled-- // avoid double count; Schedule below re-increments
			if w.Schedule(e.Fingerprint, e.Generation, e.DeadlineNanos) {
				w.stats.Rescheduled++
			}
		}
		w.buckets[idx] = kept

		w.currentTick++
	}

	w.lastPoll = nowNanos
}

// Reset clears all buckets and stats, starting the wheel fresh at
// startNanos (spec.md §4.6/§4.2 reset_epoch contract).
func (w *Wheel) Reset(startNanos int64) {
	for i := range w.buckets {
		w.buckets[i] = w.buckets[i][:0]
	}
	w.currentTick = startNanos / TickNanos
	w.lastPoll = startNanos
	w.stats = Stats{}
}

// Stats returns a snapshot of the wheel's operation counters.
func (w *Wheel) Stats() Stats { return w.stats }

// TotalPending counts entries across all buckets (O(NumBuckets), debug
// only).
func (w *Wheel) TotalPending() int {
	total := 0
	for _, b := range w.buckets {
		total += len(b)
	}
	return total
}
