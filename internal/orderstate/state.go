// Package orderstate defines the per-order reconciliation record: two
// parallel sub-views (primary, dropcopy) plus reconciliation-lifecycle
// bookkeeping, grounded on orig:src/core/order_state.hpp and
// orig:src/core/recon_state.hpp, generalized to spec.md §3's richer model
// (per-side gap-suppression epochs, timer generation, dedup bookkeeping).
package orderstate

import "github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"

// ReconState is the reconciliation lifecycle state of an order (distinct
// from the FIX OrdStatus carried in each side's view).
type ReconState uint8

const (
	Unknown ReconState = iota
	AwaitingPrimary
	AwaitingDropCopy
	InGrace
	Matched
	DivergedConfirmed
	SuppressedByGap
)

func (s ReconState) String() string {
	switch s {
	case AwaitingPrimary:
		return "AwaitingPrimary"
	case AwaitingDropCopy:
		return "AwaitingDropCopy"
	case InGrace:
		return "InGrace"
	case Matched:
		return "Matched"
	case DivergedConfirmed:
		return "DivergedConfirmed"
	case SuppressedByGap:
		return "SuppressedByGap"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s requires no further automatic transition
// without new external information.
func (s ReconState) IsTerminal() bool {
	return s == Matched || s == DivergedConfirmed
}

// Mismatch bits, exactly one byte (spec.md §4.4).
const (
	MismatchStatus uint8 = 1 << iota
	MismatchCumQty
	MismatchLeavesQty
	MismatchAvgPx
	MismatchExistence
	MismatchExecID
)

// MismatchMask is a one-byte bitset over the mismatch fields above.
type MismatchMask uint8

func (m MismatchMask) Has(bit uint8) bool { return uint8(m)&bit != 0 }
func (m *MismatchMask) Set(bit uint8)     { *m = MismatchMask(uint8(*m) | bit) }
func (m MismatchMask) Any() bool          { return m != 0 }
func (m MismatchMask) None() bool         { return m == 0 }
func (m MismatchMask) Bits() uint8        { return uint8(m) }

// SideView holds one source's last-observed state for an order.
type SideView struct {
	Status      execevent.OrdStatus
	CumQty      int64
	AvgPx       int64
	LastTransactTime uint64
	LastSendingTime  uint64
	LastExecID  execevent.ID
	Seen        bool
	// SessionID is the session this side was last observed on, needed to
	// look up the matching sequence tracker when re-checking gap
	// suppression at grace-deadline expiry.
	SessionID uint16
	// GapSuppressionEpoch is the gap epoch of this side's sequence tracker
	// at the moment this order was last touched while a gap was open on
	// that side. 0 means "never flagged" (spec.md §3, §4.8).
	GapSuppressionEpoch uint32
}

// State is the per-fingerprint reconciliation record. Trivially copyable:
// no pointers, no slices, safe to store by value in the arena-backed store.
type State struct {
	Fingerprint uint64

	Primary  SideView
	DropCopy SideView

	ReconState       ReconState
	CurrentMismatch  MismatchMask
	MismatchFirstSeenNanos int64
	ReconDeadlineNanos     int64
	TimerGeneration        uint32

	LastEmittedMask  MismatchMask
	LastEmittedNanos int64
	HasEmitted       bool
}

// Reset zeroes the state and stamps the fingerprint, used when the arena
// hands back a fresh slot for a newly observed order.
func (s *State) Reset(fp uint64) {
	*s = State{Fingerprint: fp}
}

// SideFor returns a pointer to the SideView for the given source.
func (s *State) SideFor(src execevent.Source) *SideView {
	if src == execevent.Primary {
		return &s.Primary
	}
	return &s.DropCopy
}
