package reconciler

import "github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/classifier"

// Counters holds the reconciler's plain (single-writer, per spec.md §5)
// observable counters. Exposed by internal/metrics via a periodic snapshot.
type Counters struct {
	InternalEvents  uint64
	DropcopyEvents  uint64

	DivergenceTotal            uint64
	DivergenceMissingFill      uint64
	DivergencePhantom          uint64
	DivergenceStateMismatch    uint64
	DivergenceQuantityMismatch uint64
	DivergenceTimingAnomaly    uint64
	DivergenceMissingDropCopy  uint64
	DivergenceRingDrops        uint64

	StoreOverflow uint64

	PrimarySeqGaps        uint64
	PrimarySeqDuplicates  uint64
	PrimarySeqOutOfOrder  uint64
	DropcopySeqGaps       uint64
	DropcopySeqDuplicates uint64
	DropcopySeqOutOfOrder uint64
	SequenceGapRingDrops  uint64

	MismatchObserved     uint64
	MismatchConfirmed    uint64
	FalsePositiveAvoided uint64
	OrdersMatched        uint64
	GapSuppressions      uint64
	TimerOverflow        uint64
	StaleTimersSkipped   uint64
	GapsClosedByFill     uint64
	GapsClosedByTimeout  uint64
	DivergenceDeduped    uint64
	DivergenceResolved   uint64
	IllegalTransitions   uint64
}

func (c *Counters) countKind(kind classifier.DivergenceKind) {
	switch kind {
	case classifier.MissingFill:
		c.DivergenceMissingFill++
	case classifier.PhantomOrder:
		c.DivergencePhantom++
	case classifier.StateMismatch:
		c.DivergenceStateMismatch++
	case classifier.QuantityMismatch:
		c.DivergenceQuantityMismatch++
	case classifier.TimingAnomaly:
		c.DivergenceTimingAnomaly++
	case classifier.MissingDropCopy:
		c.DivergenceMissingDropCopy++
	}
}
