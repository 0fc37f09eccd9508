// Package metrics exposes the daemon's internal counters as Prometheus
// metrics, modeled on the teacher's internal/escrow/metrics.go
// (promauto-registered vecs plus a handful of Record/Update methods).
//
// The reconciler, auditwriter, and wirecapture counters are plain
// (non-atomic) structs meant for a single writer goroutine, so rather
// than incrementing a prometheus.Counter on every event (which would
// require the hot path to reach across package boundaries on every
// call), cmd/recond periodically snapshots each package's Counters
// struct and pushes it here. Snapshot sets gauges directly
// from the cumulative totals, which is exact for monotonically
// increasing fields and matches the "periodic snapshot" comment
// already present on reconciler.Counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditwriter"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/reconciler"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/replay"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wirecapture"
)

// Metrics holds all Prometheus gauges/counters the daemon exposes on
// /metrics.
type Metrics struct {
	// Reconciler ingest and divergence counters
	ReconcilerInternalEvents           prometheus.Gauge
	ReconcilerDropcopyEvents           prometheus.Gauge
	ReconcilerDivergenceTotal          prometheus.Gauge
	ReconcilerDivergenceByKind         *prometheus.GaugeVec
	ReconcilerStoreOverflow            prometheus.Gauge
	ReconcilerSeqGapsByStream          *prometheus.GaugeVec
	ReconcilerSeqDuplicatesByStream    *prometheus.GaugeVec
	ReconcilerSeqOutOfOrderByStream    *prometheus.GaugeVec
	ReconcilerSequenceGapRingDrops     prometheus.Gauge
	ReconcilerMismatchObserved         prometheus.Gauge
	ReconcilerMismatchConfirmed        prometheus.Gauge
	ReconcilerFalsePositiveAvoided     prometheus.Gauge
	ReconcilerOrdersMatched            prometheus.Gauge
	ReconcilerGapSuppressions          prometheus.Gauge
	ReconcilerTimerOverflow            prometheus.Gauge
	ReconcilerStaleTimersSkipped       prometheus.Gauge
	ReconcilerGapsClosedByFill         prometheus.Gauge
	ReconcilerGapsClosedByTimeout      prometheus.Gauge
	ReconcilerDivergenceDeduped        prometheus.Gauge
	ReconcilerDivergenceResolved       prometheus.Gauge
	ReconcilerIllegalTransitions       prometheus.Gauge

	// Audit writer counters
	AuditWriterDropDivergence    prometheus.Gauge
	AuditWriterDropGaps          prometheus.Gauge
	AuditWriterIOErrors          prometheus.Gauge
	AuditWriterRecoveryAttempts  prometheus.Gauge
	AuditWriterDegradedModeNanos prometheus.Gauge

	// Wire capture counters
	WireCaptureMessagesSubmitted prometheus.Gauge
	WireCaptureMessagesWritten   prometheus.Gauge
	WireCaptureBytesWritten      prometheus.Gauge
	WireCaptureDropsQueueFull    prometheus.Gauge
	WireCaptureDropsDegraded     prometheus.Gauge
	WireCaptureIOErrorsWrite     prometheus.Gauge
	WireCaptureIOErrorsOpen      prometheus.Gauge
	WireCaptureFilesRotated      prometheus.Gauge

	// Replay tool counters (only populated when cmd/replaytool runs
	// in-process; zero otherwise)
	ReplayProcessedOK         prometheus.Gauge
	ReplayReadErrors          prometheus.Gauge
	ReplayCorruptRecords      prometheus.Gauge
	ReplayPushFailures        prometheus.Gauge
	ReplaySkippedDueToLimit   prometheus.Gauge
	ReplayBackwardTimestamps  prometheus.Gauge
}

// New creates and registers all Prometheus metrics against the default
// registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers all Prometheus metrics against
// the given registerer, so tests can use a fresh prometheus.NewRegistry()
// instead of colliding on the global default.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReconcilerInternalEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_internal_events_total",
			Help: "Total internal (primary-stream) exec events processed",
		}),
		ReconcilerDropcopyEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_dropcopy_events_total",
			Help: "Total drop-copy exec events processed",
		}),
		ReconcilerDivergenceTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_divergence_total",
			Help: "Total divergences emitted across all kinds",
		}),
		ReconcilerDivergenceByKind: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recond_reconciler_divergence_by_kind",
			Help: "Divergence count broken out by kind",
		}, []string{"kind"}),
		ReconcilerStoreOverflow: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_store_overflow_total",
			Help: "Order store capacity overflow events",
		}),
		ReconcilerSeqGapsByStream: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recond_reconciler_seq_gaps_total",
			Help: "Sequence gaps detected, by stream",
		}, []string{"stream"}),
		ReconcilerSeqDuplicatesByStream: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recond_reconciler_seq_duplicates_total",
			Help: "Duplicate sequence numbers observed, by stream",
		}, []string{"stream"}),
		ReconcilerSeqOutOfOrderByStream: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recond_reconciler_seq_out_of_order_total",
			Help: "Out-of-order sequence numbers observed, by stream",
		}, []string{"stream"}),
		ReconcilerSequenceGapRingDrops: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_sequence_gap_ring_drops_total",
			Help: "Gap events dropped because the gap ring was full",
		}),
		ReconcilerMismatchObserved: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_mismatch_observed_total",
			Help: "Candidate mismatches observed before grace-period confirmation",
		}),
		ReconcilerMismatchConfirmed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_mismatch_confirmed_total",
			Help: "Mismatches confirmed after grace period elapsed",
		}),
		ReconcilerFalsePositiveAvoided: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_false_positive_avoided_total",
			Help: "Candidate mismatches resolved before confirmation",
		}),
		ReconcilerOrdersMatched: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_orders_matched_total",
			Help: "Orders reconciled with no divergence",
		}),
		ReconcilerGapSuppressions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_gap_suppressions_total",
			Help: "Divergences suppressed while a sequence gap is open",
		}),
		ReconcilerTimerOverflow: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_timer_overflow_total",
			Help: "Grace-period timer wheel overflow events",
		}),
		ReconcilerStaleTimersSkipped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_stale_timers_skipped_total",
			Help: "Timer callbacks skipped because the order resolved first",
		}),
		ReconcilerGapsClosedByFill: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_gaps_closed_by_fill_total",
			Help: "Sequence gaps closed by an in-range observation",
		}),
		ReconcilerGapsClosedByTimeout: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_gaps_closed_by_timeout_total",
			Help: "Sequence gaps closed by the abandonment timeout",
		}),
		ReconcilerDivergenceDeduped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_divergence_deduped_total",
			Help: "Divergences suppressed as duplicates within the dedup window",
		}),
		ReconcilerDivergenceResolved: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_divergence_resolved_total",
			Help: "Previously diverged orders later observed consistent",
		}),
		ReconcilerIllegalTransitions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_reconciler_illegal_transitions_total",
			Help: "Order state transitions rejected as illegal",
		}),

		AuditWriterDropDivergence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_auditwriter_drop_divergence_total",
			Help: "Divergence records dropped by the audit writer (degraded mode)",
		}),
		AuditWriterDropGaps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_auditwriter_drop_gaps_total",
			Help: "Gap records dropped by the audit writer (degraded mode)",
		}),
		AuditWriterIOErrors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_auditwriter_io_errors_total",
			Help: "I/O errors encountered by the audit writer",
		}),
		AuditWriterRecoveryAttempts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_auditwriter_recovery_attempts_total",
			Help: "Attempts made to recover from degraded mode",
		}),
		AuditWriterDegradedModeNanos: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_auditwriter_degraded_mode_nanos",
			Help: "Cumulative nanoseconds spent in degraded mode",
		}),

		WireCaptureMessagesSubmitted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_messages_submitted_total",
			Help: "Exec events submitted to the wire-capture writer",
		}),
		WireCaptureMessagesWritten: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_messages_written_total",
			Help: "Exec events successfully written to a capture file",
		}),
		WireCaptureBytesWritten: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_bytes_written_total",
			Help: "Bytes written across all capture files",
		}),
		WireCaptureDropsQueueFull: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_drops_queue_full_total",
			Help: "Exec events dropped because the submission ring was full",
		}),
		WireCaptureDropsDegraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_drops_degraded_total",
			Help: "Exec events dropped while the capture writer was degraded",
		}),
		WireCaptureIOErrorsWrite: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_io_errors_write_total",
			Help: "Write I/O errors encountered by the capture writer",
		}),
		WireCaptureIOErrorsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_io_errors_open_total",
			Help: "File-open I/O errors encountered by the capture writer",
		}),
		WireCaptureFilesRotated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_wirecapture_files_rotated_total",
			Help: "Capture file rotations performed",
		}),

		ReplayProcessedOK: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_replay_processed_ok_total",
			Help: "Records successfully replayed",
		}),
		ReplayReadErrors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_replay_read_errors_total",
			Help: "Read errors encountered during replay",
		}),
		ReplayCorruptRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_replay_corrupt_records_total",
			Help: "Corrupt records skipped during replay",
		}),
		ReplayPushFailures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_replay_push_failures_total",
			Help: "Pushes to a reconciler sink that exhausted backoff",
		}),
		ReplaySkippedDueToLimit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_replay_skipped_due_to_limit_total",
			Help: "Records skipped because --max-records was reached",
		}),
		ReplayBackwardTimestamps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recond_replay_backward_timestamps_total",
			Help: "Consecutive records observed with a non-increasing capture timestamp",
		}),
	}
}

// SnapshotReconciler updates the reconciler gauges from a Counters snapshot.
func (m *Metrics) SnapshotReconciler(c reconciler.Counters) {
	m.ReconcilerInternalEvents.Set(float64(c.InternalEvents))
	m.ReconcilerDropcopyEvents.Set(float64(c.DropcopyEvents))
	m.ReconcilerDivergenceTotal.Set(float64(c.DivergenceTotal))
	m.ReconcilerDivergenceByKind.WithLabelValues("missing_fill").Set(float64(c.DivergenceMissingFill))
	m.ReconcilerDivergenceByKind.WithLabelValues("phantom_order").Set(float64(c.DivergencePhantom))
	m.ReconcilerDivergenceByKind.WithLabelValues("state_mismatch").Set(float64(c.DivergenceStateMismatch))
	m.ReconcilerDivergenceByKind.WithLabelValues("quantity_mismatch").Set(float64(c.DivergenceQuantityMismatch))
	m.ReconcilerDivergenceByKind.WithLabelValues("timing_anomaly").Set(float64(c.DivergenceTimingAnomaly))
	m.ReconcilerDivergenceByKind.WithLabelValues("missing_dropcopy").Set(float64(c.DivergenceMissingDropCopy))
	m.ReconcilerStoreOverflow.Set(float64(c.StoreOverflow))
	m.ReconcilerSeqGapsByStream.WithLabelValues("primary").Set(float64(c.PrimarySeqGaps))
	m.ReconcilerSeqGapsByStream.WithLabelValues("dropcopy").Set(float64(c.DropcopySeqGaps))
	m.ReconcilerSeqDuplicatesByStream.WithLabelValues("primary").Set(float64(c.PrimarySeqDuplicates))
	m.ReconcilerSeqDuplicatesByStream.WithLabelValues("dropcopy").Set(float64(c.DropcopySeqDuplicates))
	m.ReconcilerSeqOutOfOrderByStream.WithLabelValues("primary").Set(float64(c.PrimarySeqOutOfOrder))
	m.ReconcilerSeqOutOfOrderByStream.WithLabelValues("dropcopy").Set(float64(c.DropcopySeqOutOfOrder))
	m.ReconcilerSequenceGapRingDrops.Set(float64(c.SequenceGapRingDrops))
	m.ReconcilerMismatchObserved.Set(float64(c.MismatchObserved))
	m.ReconcilerMismatchConfirmed.Set(float64(c.MismatchConfirmed))
	m.ReconcilerFalsePositiveAvoided.Set(float64(c.FalsePositiveAvoided))
	m.ReconcilerOrdersMatched.Set(float64(c.OrdersMatched))
	m.ReconcilerGapSuppressions.Set(float64(c.GapSuppressions))
	m.ReconcilerTimerOverflow.Set(float64(c.TimerOverflow))
	m.ReconcilerStaleTimersSkipped.Set(float64(c.StaleTimersSkipped))
	m.ReconcilerGapsClosedByFill.Set(float64(c.GapsClosedByFill))
	m.ReconcilerGapsClosedByTimeout.Set(float64(c.GapsClosedByTimeout))
	m.ReconcilerDivergenceDeduped.Set(float64(c.DivergenceDeduped))
	m.ReconcilerDivergenceResolved.Set(float64(c.DivergenceResolved))
	m.ReconcilerIllegalTransitions.Set(float64(c.IllegalTransitions))
}

// SnapshotAuditWriter updates the audit writer gauges from a Counters snapshot.
func (m *Metrics) SnapshotAuditWriter(c auditwriter.Counters) {
	m.AuditWriterDropDivergence.Set(float64(c.WriterDropDivergence))
	m.AuditWriterDropGaps.Set(float64(c.WriterDropGaps))
	m.AuditWriterIOErrors.Set(float64(c.AuditIOErrors))
	m.AuditWriterRecoveryAttempts.Set(float64(c.AuditRecoveryAttempts))
	m.AuditWriterDegradedModeNanos.Set(float64(c.AuditDegradedModeNanos))
}

// SnapshotWireCapture updates the wire-capture gauges from a Counters snapshot.
func (m *Metrics) SnapshotWireCapture(c wirecapture.Counters) {
	m.WireCaptureMessagesSubmitted.Set(float64(c.MessagesSubmitted))
	m.WireCaptureMessagesWritten.Set(float64(c.MessagesWritten))
	m.WireCaptureBytesWritten.Set(float64(c.BytesWritten))
	m.WireCaptureDropsQueueFull.Set(float64(c.DropsQueueFull))
	m.WireCaptureDropsDegraded.Set(float64(c.DropsDegradedMode))
	m.WireCaptureIOErrorsWrite.Set(float64(c.IOErrorsWrite))
	m.WireCaptureIOErrorsOpen.Set(float64(c.IOErrorsOpen))
	m.WireCaptureFilesRotated.Set(float64(c.FilesRotated))
}

// SnapshotReplay updates the replay gauges from a Stats snapshot.
func (m *Metrics) SnapshotReplay(s replay.Stats) {
	m.ReplayProcessedOK.Set(float64(s.ProcessedOK))
	m.ReplayReadErrors.Set(float64(s.ReadErrors))
	m.ReplayCorruptRecords.Set(float64(s.CorruptRecords))
	m.ReplayPushFailures.Set(float64(s.PushFailures))
	m.ReplaySkippedDueToLimit.Set(float64(s.SkippedDueToLimit))
	m.ReplayBackwardTimestamps.Set(float64(s.BackwardTimestamps))
}
