// Package seqtracker implements the per-source/per-session sequence FSM of
// spec.md §3/§4.3, grounded on orig:src/core/sequence_tracker.hpp.
package seqtracker

import "github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"

// GapKind classifies a non-in-order observation.
type GapKind uint8

const (
	Gap GapKind = iota
	Duplicate
	OutOfOrder
	GapFill
)

func (k GapKind) String() string {
	switch k {
	case Duplicate:
		return "Duplicate"
	case OutOfOrder:
		return "OutOfOrder"
	case GapFill:
		return "GapFill"
	default:
		return "Gap"
	}
}

// GapEvent is the emitted sequence-gap record (spec.md §3).
type GapEvent struct {
	Source           execevent.Source
	SessionID        uint16
	ExpectedSeq      uint64
	SeenSeq          uint64
	Kind             GapKind
	DetectNanos      int64
	ClosedByFill     bool
}

// Tracker is the per-(source,session) sequence state machine.
type Tracker struct {
	initialized bool
	lastSeen    uint64
	expected    uint64

	gapOpen          bool
	gapStart         uint64
	gapEndExclusive  uint64
	gapDetectedNanos int64

	// gapEpoch is the monotonically increasing (skipping 0) identifier of
	// the currently (or most recently) open gap. 0 = "no gap ever".
	gapEpoch uint32

	ordersInGap uint64
}

// GapEpoch returns the tracker's current gap epoch (0 if no gap has ever
// opened).
func (t *Tracker) GapEpoch() uint32 { return t.gapEpoch }

// GapOpen reports whether a gap is currently open on this tracker.
func (t *Tracker) GapOpen() bool { return t.gapOpen }

// OrdersInGap returns the count of orders currently flagged against the
// tracker's open gap.
func (t *Tracker) OrdersInGap() uint64 { return t.ordersInGap }

// IncrementOrdersInGap bumps the per-gap order counter; called by the
// reconciler whenever it lazily stamps an order with the current epoch.
func (t *Tracker) IncrementOrdersInGap() { t.ordersInGap++ }

func (t *Tracker) resetOrdersInGap() { t.ordersInGap = 0 }

// bumpEpoch increments gapEpoch, skipping the reserved sentinel 0 on wrap.
func (t *Tracker) bumpEpoch() {
	t.gapEpoch++
	if t.gapEpoch == 0 {
		t.gapEpoch = 1
	}
}

func (t *Tracker) closeGap() {
	t.gapOpen = false
	t.gapStart = 0
	t.gapEndExclusive = 0
	t.gapDetectedNanos = 0
}

// Track observes seq for this tracker at nowNanos. Returns (event, true) if
// a classified gap/duplicate/out-of-order/gap-fill event should be emitted,
// or (zero, false) if the observation was in-order (normal advance) or this
// was the tracker's first-ever observation.
func (t *Tracker) Track(src execevent.Source, sessionID uint16, seq uint64, nowNanos int64) (GapEvent, bool) {
	if !t.initialized {
		t.initialized = true
		t.lastSeen = seq
		t.expected = seq + 1
		return GapEvent{}, false
	}

	if seq == t.expected {
		t.lastSeen = seq
		t.expected = seq + 1
		return GapEvent{}, false
	}

	if seq > t.expected {
		expectedBefore := t.expected
		t.gapOpen = true
		t.gapStart = t.expected
		t.gapEndExclusive = seq
		t.gapDetectedNanos = nowNanos
		t.lastSeen = seq
		t.expected = seq + 1
		t.bumpEpoch()
		t.resetOrdersInGap()

		return GapEvent{
			Source:      src,
			SessionID:   sessionID,
			ExpectedSeq: expectedBefore,
			SeenSeq:     seq,
			Kind:        Gap,
			DetectNanos: nowNanos,
		}, true
	}

	// seq < expected: duplicate, out-of-order, or gap-fill.
	isDuplicate := seq == t.lastSeen
	closedByFill := false
	if t.gapOpen && !isDuplicate && seq >= t.gapStart && seq < t.gapEndExclusive {
		t.closeGap()
		closedByFill = true
	}

	kind := OutOfOrder
	switch {
	case isDuplicate:
		kind = Duplicate
	case closedByFill:
		kind = GapFill
	}

	return GapEvent{
		Source:       src,
		SessionID:    sessionID,
		ExpectedSeq:  t.expected,
		SeenSeq:      seq,
		Kind:         kind,
		DetectNanos:  nowNanos,
		ClosedByFill: closedByFill,
	}, true
}

// CloseAbandonedGap closes an open gap that has exceeded gapCloseTimeoutNanos
// since detection without ever filling, per spec.md §4.3's timeout path.
// Returns true if a gap was closed.
func (t *Tracker) CloseAbandonedGap(nowNanos int64, gapCloseTimeoutNanos int64) bool {
	if !t.gapOpen {
		return false
	}
	if nowNanos-t.gapDetectedNanos < gapCloseTimeoutNanos {
		return false
	}
	t.closeGap()
	return true
}
