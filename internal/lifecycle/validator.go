// Package lifecycle validates OrdStatus transitions per spec.md §4.5,
// grounded on orig:src/core/order_lifecycle.hpp and generalized to the
// fuller status space spec.md §4.5 enumerates (PendingNew/New distinct from
// Working, explicit CancelPending/Replaced states).
package lifecycle

import "github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"

// IsTerminal reports whether s accepts no further outward transitions.
func IsTerminal(s execevent.OrdStatus) bool {
	switch s {
	case execevent.StatusFilled, execevent.StatusCanceled, execevent.StatusRejected:
		return true
	default:
		return false
	}
}

// IsValidTransition reports whether next is a legal transition from current,
// per the directed graph in spec.md §4.5. Unknown accepts any first status;
// idempotent self-transitions are always accepted; terminal statuses accept
// nothing.
func IsValidTransition(current, next execevent.OrdStatus) bool {
	if current == execevent.StatusUnknown {
		return true
	}
	if current == next {
		return true
	}
	if IsTerminal(current) {
		return false
	}

	switch current {
	case execevent.StatusPendingNew, execevent.StatusNew:
		switch next {
		case execevent.StatusWorking, execevent.StatusPartiallyFilled, execevent.StatusFilled,
			execevent.StatusCancelPending, execevent.StatusRejected:
			return true
		}
		return false
	case execevent.StatusWorking:
		switch next {
		case execevent.StatusPartiallyFilled, execevent.StatusFilled,
			execevent.StatusCancelPending, execevent.StatusRejected:
			return true
		}
		return false
	case execevent.StatusPartiallyFilled:
		switch next {
		case execevent.StatusPartiallyFilled, execevent.StatusFilled, execevent.StatusCancelPending:
			return true
		}
		return false
	case execevent.StatusCancelPending:
		switch next {
		case execevent.StatusCanceled, execevent.StatusRejected,
			execevent.StatusPartiallyFilled, execevent.StatusFilled:
			return true
		}
		return false
	case execevent.StatusReplaced:
		switch next {
		case execevent.StatusWorking, execevent.StatusPartiallyFilled, execevent.StatusFilled,
			execevent.StatusCancelPending, execevent.StatusRejected:
			return true
		}
		return false
	default:
		return false
	}
}

// Apply attempts to move current to next, returning the new status and
// whether the transition was legal. On an illegal transition, current is
// returned unchanged (the caller marks the side as STATUS-mismatched
// without updating further, per spec.md §4.5/§4.7).
func Apply(current, next execevent.OrdStatus) (execevent.OrdStatus, bool) {
	if !IsValidTransition(current, next) {
		return current, false
	}
	return next, true
}
