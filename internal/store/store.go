// Package store implements the single-writer order-state store: an
// open-addressed hash table (fingerprint -> *orderstate.State) backed by
// internal/arena, grounded on orig:src/core/order_state_store.{hpp,cpp}.
package store

import (
	"fmt"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/arena"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/orderstate"
)

// DefaultProbeLimit bounds worst-case upsert/find latency (spec.md §4.2).
const DefaultProbeLimit = 64

// Store is an open-addressed hash map over an arena-backed OrderState pool.
// Single-writer only: no internal locking, matching spec.md §3's invariant.
type Store struct {
	arena      *arena.Arena[orderstate.State]
	buckets    []*orderstate.State
	probeLimit int
	overflow   uint64
}

// New constructs a Store sized for capacityHint live orders. The bucket
// count is the next power of two >= 2*capacityHint, per spec.md §4.2.
func New(capacityHint int, probeLimit int) (*Store, error) {
	if capacityHint <= 0 {
		return nil, fmt.Errorf("store: invalid capacity hint %d", capacityHint)
	}
	if probeLimit <= 0 {
		probeLimit = DefaultProbeLimit
	}
	a, err := arena.New[orderstate.State](capacityHint)
	if err != nil {
		return nil, err
	}
	bucketCount := nextPowerOfTwo(2 * capacityHint)
	return &Store{
		arena:      a,
		buckets:    make([]*orderstate.State, bucketCount),
		probeLimit: probeLimit,
	}, nil
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

func (s *Store) bucketIndex(fp uint64) int {
	return int(fp & uint64(len(s.buckets)-1))
}

// Find performs a read-only probe for fp, returning nil if absent.
func (s *Store) Find(fp uint64) *orderstate.State {
	idx := s.bucketIndex(fp)
	mask := len(s.buckets) - 1
	for i := 0; i < s.probeLimit; i++ {
		slot := s.buckets[(idx+i)&mask]
		if slot == nil {
			return nil
		}
		if slot.Fingerprint == fp {
			return slot
		}
	}
	return nil
}

// Upsert finds or creates the OrderState for fp. Returns nil if the probe
// chain is exhausted or the arena is full; the caller must count the
// overflow and drop the event (spec.md §4.2/§4.7).
func (s *Store) Upsert(fp uint64) *orderstate.State {
	idx := s.bucketIndex(fp)
	mask := len(s.buckets) - 1
	for i := 0; i < s.probeLimit; i++ {
		pos := (idx + i) & mask
		slot := s.buckets[pos]
		if slot == nil {
			fresh := s.arena.Allocate()
			if fresh == nil {
				s.overflow++
				return nil
			}
			fresh.Reset(fp)
			s.buckets[pos] = fresh
			return fresh
		}
		if slot.Fingerprint == fp {
			return slot
		}
	}
	s.overflow++
	return nil
}

// ResetEpoch resets the arena and clears the entire bucket array in one
// pass, per spec.md §4.2's end-of-day contract.
func (s *Store) ResetEpoch() {
	s.arena.Reset()
	for i := range s.buckets {
		s.buckets[i] = nil
	}
}

// Overflow reports the cumulative count of upserts that failed due to a
// full probe chain or arena exhaustion.
func (s *Store) Overflow() uint64 { return s.overflow }

// Len reports the number of live orders currently tracked.
func (s *Store) Len() int { return s.arena.Len() }
