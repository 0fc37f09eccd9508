// Package classifier computes the per-order mismatch bitmask and derives a
// divergence kind from it, per spec.md §4.4, grounded on
// orig:src/core/divergence.hpp (priority chain generalized to the six-way
// spec.md ordering, including the new MissingDropCopy/EXISTENCE case).
package classifier

import (
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/orderstate"
)

// DivergenceKind enumerates the classified divergence types (spec.md §3).
type DivergenceKind uint8

const (
	MissingFill DivergenceKind = iota
	PhantomOrder
	StateMismatch
	QuantityMismatch
	TimingAnomaly
	MissingDropCopy
)

func (k DivergenceKind) String() string {
	switch k {
	case PhantomOrder:
		return "PhantomOrder"
	case StateMismatch:
		return "StateMismatch"
	case QuantityMismatch:
		return "QuantityMismatch"
	case TimingAnomaly:
		return "TimingAnomaly"
	case MissingDropCopy:
		return "MissingDropCopy"
	default:
		return "MissingFill"
	}
}

// Tolerances bounds the numeric slack before a field counts as mismatched.
type Tolerances struct {
	Qty        int64
	Px         int64
	TimingNanos int64
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func isPreFill(s execevent.OrdStatus) bool {
	switch s {
	case execevent.StatusNew, execevent.StatusPendingNew, execevent.StatusWorking:
		return true
	default:
		return false
	}
}

func isFillOrPartial(s execevent.OrdStatus) bool {
	return s == execevent.StatusFilled || s == execevent.StatusPartiallyFilled
}

// Mismatch computes the mismatch bitmask for the given order state.
func Mismatch(st *orderstate.State, tol Tolerances) orderstate.MismatchMask {
	var m orderstate.MismatchMask
	p, d := &st.Primary, &st.DropCopy

	if !p.Seen || !d.Seen {
		m.Set(orderstate.MismatchExistence)
		return m
	}

	if p.Status != d.Status {
		m.Set(orderstate.MismatchStatus)
	}
	if abs64(d.CumQty-p.CumQty) > tol.Qty {
		m.Set(orderstate.MismatchCumQty)
	}
	if abs64(d.AvgPx-p.AvgPx) > tol.Px {
		m.Set(orderstate.MismatchAvgPx)
	}
	if !p.LastExecID.Equal(d.LastExecID) {
		m.Set(orderstate.MismatchExecID)
	}
	// LeavesQty is derived from CumQty/status per venue convention; absent a
	// dedicated leaves-qty field on the wire, leaves mismatch tracks cum-qty
	// mismatch (both views must agree on remaining working quantity whenever
	// they agree on cum qty and status).
	if m.Has(orderstate.MismatchCumQty) {
		m.Set(orderstate.MismatchLeavesQty)
	}

	return m
}

// Classify derives the divergence kind from the mismatch mask and seen
// flags, applying spec.md §4.4's fixed priority order. ok is false if
// nothing warrants classification (mask is empty, both sides seen, and
// timing agrees within slack).
func Classify(st *orderstate.State, m orderstate.MismatchMask, tol Tolerances) (DivergenceKind, bool) {
	p, d := &st.Primary, &st.DropCopy

	if m.Has(orderstate.MismatchExistence) {
		switch {
		case p.Seen && !d.Seen:
			return MissingDropCopy, true
		case d.Seen && !p.Seen:
			return PhantomOrder, true
		default:
			return 0, false
		}
	}

	if m.Has(orderstate.MismatchStatus) {
		if isFillOrPartial(d.Status) && isPreFill(p.Status) {
			return MissingFill, true
		}
		return StateMismatch, true
	}

	if m.Has(orderstate.MismatchCumQty) || m.Has(orderstate.MismatchAvgPx) || m.Has(orderstate.MismatchLeavesQty) {
		return QuantityMismatch, true
	}

	if m.Has(orderstate.MismatchExecID) {
		return TimingAnomaly, true
	}

	// No bitmask field is set: the only remaining disagreement possible is
	// timing (dropcopy view arriving out of step with primary beyond the
	// configured slack), grounded on orig:src/core/divergence.hpp's
	// trailing `last_dropcopy_ts + timing_slack < last_internal_ts` check.
	if dropCopyTimestamp(d)+tol.TimingNanos < primaryTimestamp(p) {
		return TimingAnomaly, true
	}

	return 0, false
}

func primaryTimestamp(p *orderstate.SideView) int64 {
	if p.LastTransactTime != 0 {
		return int64(p.LastTransactTime)
	}
	return int64(p.LastSendingTime)
}

func dropCopyTimestamp(d *orderstate.SideView) int64 {
	if d.LastTransactTime != 0 {
		return int64(d.LastTransactTime)
	}
	return int64(d.LastSendingTime)
}
