// Package auditwriter implements the batching, rotating, degraded-mode
// audit log appender of spec.md §4.10, grounded on
// orig:src/persist/audit_log_writer.{hpp,cpp}.
package auditwriter

import (
	"fmt"
	"time"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditcodec"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/reconciler"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ring"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/seqtracker"
)

// Config holds the writer's tunables, per spec.md §4.10/§6.
type Config struct {
	OutputDir          string
	RotateMaxBytes     int64
	RotateInterval     time.Duration
	BatchMaxRecords    int
	BatchMaxBytes      int
	FlushIdleTimeout   time.Duration
	StagingBufferBytes int
	RecoveryBackoffMin time.Duration
	RecoveryBackoffMax time.Duration
}

// DefaultConfig returns spec.md §4.10's documented defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:          "./audit_logs",
		RotateMaxBytes:     128 * 1024 * 1024,
		RotateInterval:     time.Hour,
		BatchMaxRecords:    64,
		BatchMaxBytes:      1024 * 1024,
		FlushIdleTimeout:   10 * time.Millisecond,
		StagingBufferBytes: 2 * 1024 * 1024,
		RecoveryBackoffMin: time.Second,
		RecoveryBackoffMax: 30 * time.Second,
	}
}

// Counters tracks the writer-side observable outputs of spec.md §6.
type Counters struct {
	WriterDropDivergence  uint64
	WriterDropGaps        uint64
	AuditIOErrors         uint64
	AuditRecoveryAttempts uint64
	AuditDegradedModeNanos int64
}

// Writer drains the divergence and gap rings, frames records via
// internal/auditcodec, and appends them to rotating files on a FileSink.
// Meant to run on its own dedicated goroutine (spec.md §5).
type Writer struct {
	cfg Config

	divRing *ring.SPSC[reconciler.DivergenceRecord]
	gapRing *ring.SPSC[seqtracker.GapEvent]

	sink FileSink

	Counters Counters

	staging      []byte
	stagingUsed  int
	batchRecords int

	lastFlush  time.Time
	lastRotate time.Time
	fileSeq    uint64
	bytesInFile int64
	currentPath string

	degraded             bool
	degradedSince        time.Time
	degradedLastObserved time.Time
	nextRecovery         time.Time
	recoveryBackoff      time.Duration

	nowFn func() time.Time
}

// New constructs a Writer over the given rings and sink, with zero value
// state (no file open yet; the first appended record opens one via
// ensureFileReady).
func New(cfg Config, divRing *ring.SPSC[reconciler.DivergenceRecord], gapRing *ring.SPSC[seqtracker.GapEvent]) *Writer {
	return &Writer{
		cfg:             cfg,
		divRing:         divRing,
		gapRing:         gapRing,
		sink:            newOSFileSink(),
		staging:         make([]byte, cfg.StagingBufferBytes),
		recoveryBackoff: cfg.RecoveryBackoffMin,
		nowFn:           time.Now,
	}
}

// SetSink overrides the writer's FileSink, normally only used by tests
// (or a caller that wants audit files written somewhere other than
// plain os files) since New already wires a production osFileSink.
func (w *Writer) SetSink(sink FileSink) {
	w.sink = sink
}

// DrainOnce pops at most one divergence and one gap record and appends
// them (or counts a drop if degraded), then flushes if a threshold is met.
// Returns whether any work was done, so a Run loop can decide to back off.
func (w *Writer) DrainOnce() bool {
	now := w.nowFn()
	did := false

	w.maybeRecover(now)

	var div reconciler.DivergenceRecord
	if w.divRing.TryPop(&div) {
		did = true
		w.appendDivergence(div, now)
	}

	var gap seqtracker.GapEvent
	if w.gapRing.TryPop(&gap) {
		did = true
		w.appendGap(gap, now)
	}

	w.maybeFlush(now)

	return did
}

// Flush forces a flush of any pending staged bytes, per shutdown's
// guaranteed-final-flush contract (spec.md §4.10).
func (w *Writer) Flush() error {
	return w.flushBatch(w.nowFn())
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.sink.Close()
}

func (w *Writer) appendDivergence(d reconciler.DivergenceRecord, now time.Time) {
	if w.degraded {
		w.Counters.WriterDropDivergence++
		return
	}

	payload := auditcodec.DivergencePayload{
		DivergenceType:  uint8(d.Kind),
		InternalStatus:  uint8(d.Primary.Status),
		DropCopyStatus:  uint8(d.DropCopy.Status),
		Fingerprint:     d.Fingerprint,
		InternalCumQty:  d.Primary.CumQty,
		DropCopyCumQty:  d.DropCopy.CumQty,
		InternalAvgPx:   d.Primary.AvgPx,
		DropCopyAvgPx:   d.DropCopy.AvgPx,
		InternalTsNanos: d.Primary.LastTransactTime,
		DropCopyTsNanos: d.DropCopy.LastTransactTime,
	}
	size := auditcodec.RecordSize(auditcodec.DivergencePayloadV1Size)
	if !w.ensureFileReady(size, now) {
		w.Counters.WriterDropDivergence++
		return
	}
	if !w.ensureStagingRoom(size, now) {
		w.Counters.WriterDropDivergence++
		return
	}
	n, err := auditcodec.EncodeDivergence(payload, w.staging[w.stagingUsed:w.stagingUsed+size])
	if err != nil {
		w.Counters.WriterDropDivergence++
		return
	}
	w.stagingUsed += n
	w.batchRecords++
}

func (w *Writer) appendGap(g seqtracker.GapEvent, now time.Time) {
	if w.degraded {
		w.Counters.WriterDropGaps++
		return
	}

	payload := auditcodec.GapPayload{
		Source:        uint8(g.Source),
		Kind:          uint8(g.Kind),
		SessionID:     g.SessionID,
		ExpectedSeq:   g.ExpectedSeq,
		SeenSeq:       g.SeenSeq,
		DetectTsNanos: uint64(g.DetectNanos),
	}
	size := auditcodec.RecordSize(auditcodec.GapPayloadV1Size)
	if !w.ensureFileReady(size, now) {
		w.Counters.WriterDropGaps++
		return
	}
	if !w.ensureStagingRoom(size, now) {
		w.Counters.WriterDropGaps++
		return
	}
	n, err := auditcodec.EncodeGap(payload, w.staging[w.stagingUsed:w.stagingUsed+size])
	if err != nil {
		w.Counters.WriterDropGaps++
		return
	}
	w.stagingUsed += n
	w.batchRecords++
}

// ensureStagingRoom flushes the current batch if the next record would not
// fit in the staging buffer.
func (w *Writer) ensureStagingRoom(nextSize int, now time.Time) bool {
	if w.stagingUsed+nextSize <= len(w.staging) {
		return true
	}
	if err := w.flushBatch(now); err != nil {
		return false
	}
	return w.stagingUsed+nextSize <= len(w.staging)
}

// maybeFlush flushes when record/byte thresholds are met or the idle
// timeout elapses with pending bytes (spec.md §4.10's batching contract).
func (w *Writer) maybeFlush(now time.Time) {
	if w.stagingUsed == 0 {
		return
	}
	if w.batchRecords >= w.cfg.BatchMaxRecords ||
		w.stagingUsed >= w.cfg.BatchMaxBytes ||
		now.Sub(w.lastFlush) >= w.cfg.FlushIdleTimeout {
		_ = w.flushBatch(now)
	}
}

func (w *Writer) flushBatch(now time.Time) error {
	if w.stagingUsed == 0 {
		w.lastFlush = now
		return nil
	}
	if w.degraded {
		// Degraded mode drops pending staged bytes rather than growing
		// unboundedly; the caller already counted the drops on append.
		w.stagingUsed = 0
		w.batchRecords = 0
		w.lastFlush = now
		return nil
	}

	buf := w.staging[:w.stagingUsed]
	for len(buf) > 0 {
		n, err := w.sink.Write(buf)
		if err != nil {
			w.enterDegraded(now)
			return err
		}
		buf = buf[n:]
	}
	w.bytesInFile += int64(w.stagingUsed)
	w.stagingUsed = 0
	w.batchRecords = 0
	w.lastFlush = now
	return nil
}

// ensureFileReady rotates (by time or size) or opens the first file,
// returning false if the file could not be made ready (degraded mode).
func (w *Writer) ensureFileReady(nextRecordSize int, now time.Time) bool {
	if w.degraded {
		return false
	}
	if w.currentPath == "" {
		return w.openNewFile(now)
	}
	if now.Sub(w.lastRotate) >= w.cfg.RotateInterval {
		return w.openNewFile(now)
	}
	if w.bytesInFile+int64(w.stagingUsed)+int64(nextRecordSize) > w.cfg.RotateMaxBytes {
		if err := w.flushBatch(now); err != nil {
			return false
		}
		return w.openNewFile(now)
	}
	return true
}

func (w *Writer) openNewFile(now time.Time) bool {
	if err := w.flushBatch(now); err != nil {
		return false
	}
	path := w.nextFilePath(now)
	if err := w.sink.Create(path); err != nil {
		w.Counters.AuditIOErrors++
		w.enterDegraded(now)
		return false
	}
	w.currentPath = path
	w.bytesInFile = 0
	w.lastRotate = now
	w.fileSeq++
	return true
}

func (w *Writer) nextFilePath(now time.Time) string {
	return fmt.Sprintf("%s/audit_%s_seq%03d.bin", w.cfg.OutputDir, now.UTC().Format("20060102_150405"), w.fileSeq)
}

func (w *Writer) enterDegraded(now time.Time) {
	if w.degraded {
		return
	}
	w.degraded = true
	w.degradedSince = now
	w.degradedLastObserved = now
	w.nextRecovery = now.Add(w.recoveryBackoff)
}

// maybeRecover attempts to reopen the sink after the backoff window,
// doubling the backoff (capped) on repeated failure (spec.md §4.10).
// AuditDegradedModeNanos accumulates the elapsed time since the last call
// that observed the writer as degraded, so it stays a running total across
// every degrade/recover episode rather than only the most recent one.
func (w *Writer) maybeRecover(now time.Time) {
	if !w.degraded {
		return
	}
	w.Counters.AuditDegradedModeNanos += now.Sub(w.degradedLastObserved).Nanoseconds()
	w.degradedLastObserved = now
	if now.Before(w.nextRecovery) {
		return
	}

	w.Counters.AuditRecoveryAttempts++
	path := w.nextFilePath(now)
	if err := w.sink.Create(path); err != nil {
		w.Counters.AuditIOErrors++
		w.recoveryBackoff *= 2
		if w.recoveryBackoff > w.cfg.RecoveryBackoffMax {
			w.recoveryBackoff = w.cfg.RecoveryBackoffMax
		}
		w.nextRecovery = now.Add(w.recoveryBackoff)
		return
	}

	w.currentPath = path
	w.bytesInFile = 0
	w.lastRotate = now
	w.fileSeq++
	w.degraded = false
	w.recoveryBackoff = w.cfg.RecoveryBackoffMin
}

// IsDegraded reports whether the writer is currently in degraded mode.
func (w *Writer) IsDegraded() bool { return w.degraded }
