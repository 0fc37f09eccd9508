// Package reconciler implements the core decision loop of spec.md §4.7/§4.8:
// a single-writer state machine that drains the primary and dropcopy exec
// rings, maintains the order-state store and timing wheel, and emits
// divergence/gap records. Grounded on orig:src/core/reconciler.{hpp,cpp},
// generalized to spec.md's richer two-stage (AwaitingPrimary/AwaitingDropCopy
// + InGrace + SuppressedByGap) state model.
package reconciler

import (
	"context"
	"runtime"
	"time"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/classifier"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/fingerprint"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/lifecycle"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/orderstate"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ring"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/seqtracker"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/store"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wheel"
)

// Config holds the reconciler's tunable knobs, all in nanoseconds, per
// spec.md §4.7/§6.
type Config struct {
	GracePeriodNanos           int64
	GapRecheckPeriodNanos      int64
	DivergenceDedupWindowNanos int64
	QtyTolerance               int64
	PxTolerance                int64
	TimingSlackNanos           int64
	GapCloseTimeoutNanos       int64
	EnableWindowedRecon        bool
	EnableGapSuppression       bool
}

// DefaultConfig returns spec.md §4.7's documented defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriodNanos:           500 * time.Millisecond.Nanoseconds(),
		GapRecheckPeriodNanos:      100 * time.Millisecond.Nanoseconds(),
		DivergenceDedupWindowNanos: time.Second.Nanoseconds(),
		QtyTolerance:               0,
		PxTolerance:                0,
		TimingSlackNanos:           0,
		GapCloseTimeoutNanos:       time.Second.Nanoseconds(),
		EnableWindowedRecon:        true,
		EnableGapSuppression:       true,
	}
}

const (
	minBackoff = time.Microsecond
	maxBackoff = 256 * time.Microsecond
)

// Reconciler owns the store, wheel, trackers, and rings exclusively; it is
// meant to run on a single dedicated goroutine (spec.md §5).
type Reconciler struct {
	cfg Config

	primaryRing *ring.SPSC[execevent.ExecEvent]
	dropRing    *ring.SPSC[execevent.ExecEvent]
	gapRing     *ring.SPSC[seqtracker.GapEvent]
	divRing     *ring.SPSC[DivergenceRecord]

	store *store.Store
	wheel *wheel.Wheel

	primaryTrackers map[uint16]*seqtracker.Tracker
	dropTrackers    map[uint16]*seqtracker.Tracker

	Counters Counters

	backoff time.Duration
}

// New constructs a Reconciler wired to the given rings, store, and wheel.
func New(
	cfg Config,
	primaryRing *ring.SPSC[execevent.ExecEvent],
	dropRing *ring.SPSC[execevent.ExecEvent],
	gapRing *ring.SPSC[seqtracker.GapEvent],
	divRing *ring.SPSC[DivergenceRecord],
	st *store.Store,
	wh *wheel.Wheel,
) *Reconciler {
	return &Reconciler{
		cfg:             cfg,
		primaryRing:     primaryRing,
		dropRing:        dropRing,
		gapRing:         gapRing,
		divRing:         divRing,
		store:           st,
		wheel:           wh,
		primaryTrackers: make(map[uint16]*seqtracker.Tracker),
		dropTrackers:    make(map[uint16]*seqtracker.Tracker),
	}
}

func (r *Reconciler) tolerances() classifier.Tolerances {
	return classifier.Tolerances{Qty: r.cfg.QtyTolerance, Px: r.cfg.PxTolerance, TimingNanos: r.cfg.TimingSlackNanos}
}

func (r *Reconciler) trackersFor(src execevent.Source) map[uint16]*seqtracker.Tracker {
	if src == execevent.Primary {
		return r.primaryTrackers
	}
	return r.dropTrackers
}

func (r *Reconciler) trackerFor(src execevent.Source, sessionID uint16) *seqtracker.Tracker {
	m := r.trackersFor(src)
	tr, ok := m[sessionID]
	if !ok {
		tr = &seqtracker.Tracker{}
		m[sessionID] = tr
	}
	return tr
}

// ProcessOnce drains at most one event from each ring, polls the wheel, and
// sweeps abandoned gaps. Returns true if any ring had work, so the caller
// can decide whether to back off.
func (r *Reconciler) ProcessOnce(now int64) bool {
	did := false

	var ev execevent.ExecEvent
	if r.primaryRing.TryPop(&ev) {
		did = true
		r.Counters.InternalEvents++
		r.handleEvent(ev, now)
	}
	if r.dropRing.TryPop(&ev) {
		did = true
		r.Counters.DropcopyEvents++
		r.handleEvent(ev, now)
	}

	r.wheel.PollExpired(now, func(fp uint64, gen uint32) {
		r.onWheelFire(fp, gen, now)
	})

	r.pollGapTimeouts(now)

	return did
}

// Run drives ProcessOnce in a loop until ctx is cancelled, backing off with
// increasing sleeps (replacing the original's pause-instruction bursts,
// which have no portable Go equivalent) when both rings are idle, per
// spec.md §5's "exponentially increasing ... to reduce power" policy.
func (r *Reconciler) Run(ctx context.Context, nowNanos func() int64) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if r.ProcessOnce(nowNanos()) {
			r.backoff = 0
			continue
		}

		if r.backoff == 0 {
			r.backoff = minBackoff
			runtime.Gosched()
			continue
		}
		time.Sleep(r.backoff)
		if r.backoff < maxBackoff {
			r.backoff *= 2
		}
	}
}

func (r *Reconciler) handleEvent(ev execevent.ExecEvent, now int64) {
	tr := r.trackerFor(ev.Source, ev.SessionID)
	if gapEvt, ok := tr.Track(ev.Source, ev.SessionID, ev.SeqNum, now); ok {
		r.countGapEvent(gapEvt)
		if !r.gapRing.TryPush(gapEvt) {
			r.Counters.SequenceGapRingDrops++
		}
	}

	fp := fingerprint.Of(ev.ClOrdID.Bytes[:ev.ClOrdID.Len])
	st := r.store.Upsert(fp)
	if st == nil {
		r.Counters.StoreOverflow++
		return
	}

	// Stamp gap-suppression epochs for whichever tracker currently has an
	// open gap, independent of which side this event touched (spec.md
	// §4.7c): the order must be re-evaluated once either side's gap closes.
	primTr := r.trackerFor(execevent.Primary, ev.SessionID)
	dropTr := r.trackerFor(execevent.DropCopy, ev.SessionID)
	if primTr.GapOpen() {
		st.Primary.GapSuppressionEpoch = primTr.GapEpoch()
		primTr.IncrementOrdersInGap()
	}
	if dropTr.GapOpen() {
		st.DropCopy.GapSuppressionEpoch = dropTr.GapEpoch()
		dropTr.IncrementOrdersInGap()
	}

	side := st.SideFor(ev.Source)
	side.SessionID = ev.SessionID

	var mask orderstate.MismatchMask
	newStatus, legal := lifecycle.Apply(side.Status, ev.OrdStatus)
	if !legal {
		r.Counters.IllegalTransitions++
		mask.Set(orderstate.MismatchStatus)
	} else {
		side.Status = newStatus
		side.CumQty = ev.CumQty
		side.AvgPx = ev.PriceMicro
		side.LastTransactTime = ev.TransactTime
		side.LastSendingTime = ev.SendingTime
		side.LastExecID = ev.ExecID
		side.Seen = true
		mask = classifier.Mismatch(st, r.tolerances())
	}

	r.transition(st, mask, now)
}

func (r *Reconciler) countGapEvent(ev seqtracker.GapEvent) {
	isPrimary := ev.Source == execevent.Primary
	switch ev.Kind {
	case seqtracker.Gap:
		if isPrimary {
			r.Counters.PrimarySeqGaps++
		} else {
			r.Counters.DropcopySeqGaps++
		}
	case seqtracker.Duplicate:
		if isPrimary {
			r.Counters.PrimarySeqDuplicates++
		} else {
			r.Counters.DropcopySeqDuplicates++
		}
	case seqtracker.OutOfOrder:
		if isPrimary {
			r.Counters.PrimarySeqOutOfOrder++
		} else {
			r.Counters.DropcopySeqOutOfOrder++
		}
	case seqtracker.GapFill:
		r.Counters.GapsClosedByFill++
	}
}

func (r *Reconciler) pollGapTimeouts(now int64) {
	for _, tr := range r.primaryTrackers {
		if tr.CloseAbandonedGap(now, r.cfg.GapCloseTimeoutNanos) {
			r.Counters.GapsClosedByTimeout++
		}
	}
	for _, tr := range r.dropTrackers {
		if tr.CloseAbandonedGap(now, r.cfg.GapCloseTimeoutNanos) {
			r.Counters.GapsClosedByTimeout++
		}
	}
}

// transition runs the two-stage state machine of spec.md §4.8 for st given
// the freshly computed mismatch mask m.
func (r *Reconciler) transition(st *orderstate.State, m orderstate.MismatchMask, now int64) {
	if !r.cfg.EnableWindowedRecon {
		kind, ok := classifier.Classify(st, m, r.tolerances())
		if ok {
			st.ReconState = orderstate.DivergedConfirmed
			r.emitConfirmedDivergence(st, m, kind, now)
		} else {
			st.ReconState = orderstate.Matched
		}
		return
	}

	switch st.ReconState {
	case orderstate.Unknown:
		if !m.Any() {
			st.ReconState = orderstate.Matched
			r.Counters.OrdersMatched++
			return
		}
		if m.Has(orderstate.MismatchExistence) {
			if st.Primary.Seen {
				st.ReconState = orderstate.AwaitingDropCopy
			} else {
				st.ReconState = orderstate.AwaitingPrimary
			}
		} else {
			st.ReconState = orderstate.InGrace
		}
		r.enterGrace(st, m, now)

	case orderstate.AwaitingPrimary, orderstate.AwaitingDropCopy:
		if !m.Any() {
			r.cancelTimer(st)
			st.ReconState = orderstate.Matched
			r.Counters.FalsePositiveAvoided++
			r.Counters.OrdersMatched++
		} else {
			st.ReconState = orderstate.InGrace
			r.enterGrace(st, m, now)
		}

	case orderstate.InGrace:
		if !m.Any() {
			r.cancelTimer(st)
			st.ReconState = orderstate.Matched
			r.Counters.FalsePositiveAvoided++
			r.Counters.OrdersMatched++
		} else {
			st.CurrentMismatch = m
		}

	case orderstate.Matched:
		if m.Any() {
			st.ReconState = orderstate.InGrace
			r.enterGrace(st, m, now)
		}

	case orderstate.DivergedConfirmed:
		if !m.Any() {
			st.ReconState = orderstate.Matched
			r.Counters.DivergenceResolved++
		}

	case orderstate.SuppressedByGap:
		if r.gapSuppressedNow(st) {
			st.CurrentMismatch = m
			return
		}
		if m.Any() {
			st.ReconState = orderstate.InGrace
			r.enterGrace(st, m, now)
		} else {
			st.ReconState = orderstate.Matched
			r.Counters.OrdersMatched++
		}
	}
}

func (r *Reconciler) enterGrace(st *orderstate.State, m orderstate.MismatchMask, now int64) {
	r.Counters.MismatchObserved++
	st.CurrentMismatch = m
	st.MismatchFirstSeenNanos = now
	st.ReconDeadlineNanos = now + r.cfg.GracePeriodNanos
	st.TimerGeneration++
	if !r.wheel.Schedule(st.Fingerprint, st.TimerGeneration, st.ReconDeadlineNanos) {
		r.Counters.TimerOverflow++
		kind, ok := classifier.Classify(st, m, r.tolerances())
		st.ReconState = orderstate.DivergedConfirmed
		if ok {
			r.emitConfirmedDivergence(st, m, kind, now)
		}
	}
}

// cancelTimer invalidates any in-flight wheel entry for st via the
// generation counter (spec.md §4.6's lazy-cancellation contract); it never
// touches the wheel itself.
func (r *Reconciler) cancelTimer(st *orderstate.State) {
	st.TimerGeneration++
}

func (r *Reconciler) onWheelFire(fp uint64, gen uint32, now int64) {
	st := r.store.Find(fp)
	if st == nil {
		return
	}
	if gen != st.TimerGeneration {
		r.Counters.StaleTimersSkipped++
		return
	}
	r.onGraceDeadline(st, now)
}

func (r *Reconciler) onGraceDeadline(st *orderstate.State, now int64) {
	m := classifier.Mismatch(st, r.tolerances())
	// An illegal transition leaves no trace in the side views (the update
	// was skipped), so its STATUS mark is carried over from the grace entry.
	if st.ReconState == orderstate.InGrace && st.CurrentMismatch.Has(orderstate.MismatchStatus) {
		m.Set(orderstate.MismatchStatus)
	}

	if !m.Any() {
		st.ReconState = orderstate.Matched
		r.Counters.FalsePositiveAvoided++
		r.Counters.OrdersMatched++
		return
	}

	if r.cfg.EnableGapSuppression && r.gapSuppressedNow(st) {
		st.ReconState = orderstate.SuppressedByGap
		st.CurrentMismatch = m
		st.TimerGeneration++
		deadline := now + r.cfg.GapRecheckPeriodNanos
		st.ReconDeadlineNanos = deadline
		if !r.wheel.Schedule(st.Fingerprint, st.TimerGeneration, deadline) {
			r.Counters.TimerOverflow++
			kind, ok := classifier.Classify(st, m, r.tolerances())
			st.ReconState = orderstate.DivergedConfirmed
			if ok {
				r.emitConfirmedDivergence(st, m, kind, now)
			}
			return
		}
		r.Counters.GapSuppressions++
		return
	}

	kind, ok := classifier.Classify(st, m, r.tolerances())
	st.ReconState = orderstate.DivergedConfirmed
	if ok {
		r.emitConfirmedDivergence(st, m, kind, now)
	}
}

// gapSuppressedNow reports whether either side's gap-suppression stamp
// still matches its tracker's current open gap (spec.md §4.8's "gap
// suppression rationale").
func (r *Reconciler) gapSuppressedNow(st *orderstate.State) bool {
	if st.Primary.GapSuppressionEpoch != 0 {
		if tr, ok := r.primaryTrackers[st.Primary.SessionID]; ok && tr.GapOpen() && tr.GapEpoch() == st.Primary.GapSuppressionEpoch {
			return true
		}
	}
	if st.DropCopy.GapSuppressionEpoch != 0 {
		if tr, ok := r.dropTrackers[st.DropCopy.SessionID]; ok && tr.GapOpen() && tr.GapEpoch() == st.DropCopy.GapSuppressionEpoch {
			return true
		}
	}
	return false
}

func (r *Reconciler) emitConfirmedDivergence(st *orderstate.State, m orderstate.MismatchMask, kind classifier.DivergenceKind, now int64) {
	if st.HasEmitted && st.LastEmittedMask == m && now-st.LastEmittedNanos < r.cfg.DivergenceDedupWindowNanos {
		r.Counters.DivergenceDeduped++
		return
	}

	rec := DivergenceRecord{
		Fingerprint: st.Fingerprint,
		Kind:        kind,
		Mask:        m,
		Primary:     st.Primary,
		DropCopy:    st.DropCopy,
		DetectNanos: now,
	}
	if !r.divRing.TryPush(rec) {
		r.Counters.DivergenceRingDrops++
	}

	st.LastEmittedMask = m
	st.LastEmittedNanos = now
	st.HasEmitted = true

	r.Counters.DivergenceTotal++
	r.Counters.MismatchConfirmed++
	r.Counters.countKind(kind)
}
