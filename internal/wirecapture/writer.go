// Package wirecapture also implements the capture-side writer that drains
// a submission ring of raw ExecEvents onto rotating capture files, grounded
// on orig:src/persist/wire_capture_writer.{hpp,cpp}.
package wirecapture

import (
	"fmt"
	"time"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ring"
)

// Config holds the capture writer's tunables, mirroring the original's
// WireCaptureConfig.
type Config struct {
	OutputDir          string
	RotateInterval     time.Duration
	RotateMaxBytes     int64
	BatchRecords       int
	BatchBytes         int
	RecoveryInitial    time.Duration
	RecoveryMax        time.Duration
	SubmitRingCapacity int
}

// DefaultConfig returns the original's documented defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:          "./capture",
		RotateInterval:     5 * time.Minute,
		RotateMaxBytes:     1 << 30,
		BatchRecords:       64,
		BatchBytes:         1024 * 1024,
		RecoveryInitial:    time.Second,
		RecoveryMax:        30 * time.Second,
		SubmitRingCapacity: 1024,
	}
}

// Counters mirrors the original's WireCaptureMetrics (spec.md §6).
type Counters struct {
	MessagesSubmitted    uint64
	MessagesWritten      uint64
	BytesWritten         uint64
	DropsQueueFull       uint64
	DropsDegradedMode    uint64
	IOErrorsWrite        uint64
	IOErrorsOpen         uint64
	FilesRotated         uint64
}

// Writer buffers submitted ExecEvents on an internal SPSC ring and, driven
// by DrainOnce, frames and appends them to rotating capture files.
type Writer struct {
	cfg Config

	ring *ring.SPSC[submission]
	sink FileSink

	Counters Counters

	fileSeq      uint64
	bytesInFile  int64
	currentPath  string
	fileOpenedAt time.Time

	degraded        bool
	nextRecovery    time.Time
	recoveryBackoff time.Duration

	nowFn func() time.Time
}

type submission struct {
	event          execevent.ExecEvent
	captureTsNanos uint64
}

// New constructs a Writer with its own submission ring of the configured
// capacity.
func New(cfg Config) *Writer {
	return &Writer{
		cfg:             cfg,
		ring:            ring.New[submission](cfg.SubmitRingCapacity),
		sink:            newOSFileSink(),
		recoveryBackoff: cfg.RecoveryInitial,
		nowFn:           time.Now,
	}
}

// SetSink overrides the writer's FileSink, normally only used by tests
// since New already wires a production osFileSink.
func (w *Writer) SetSink(sink FileSink) {
	w.sink = sink
}

// TrySubmit enqueues ev for capture, stamping it with the supplied capture
// timestamp. Returns false (and counts a drop) if degraded or the ring is
// full, mirroring try_submit's non-blocking contract.
func (w *Writer) TrySubmit(ev execevent.ExecEvent, captureTsNanos uint64) bool {
	if w.degraded {
		w.Counters.DropsDegradedMode++
		return false
	}
	if !w.ring.TryPush(submission{event: ev, captureTsNanos: captureTsNanos}) {
		w.Counters.DropsQueueFull++
		return false
	}
	w.Counters.MessagesSubmitted++
	return true
}

// DrainOnce pops and writes up to BatchRecords submissions (bounded also by
// BatchBytes), rotating or recovering as needed. Returns whether any
// submission was processed.
func (w *Writer) DrainOnce() bool {
	now := w.nowFn()

	if w.degraded {
		w.recoverIfDue(now)
		if w.degraded {
			var sub submission
			drained := false
			for w.ring.TryPop(&sub) {
				w.Counters.DropsDegradedMode++
				drained = true
			}
			return drained
		}
	}

	var frames [][]byte
	records := 0
	batchBytes := 0
	for records < w.cfg.BatchRecords && batchBytes < w.cfg.BatchBytes {
		var sub submission
		if !w.ring.TryPop(&sub) {
			break
		}
		payload := make([]byte, ExecEventPayloadSize)
		EncodeExecEvent(sub.event, payload)
		frame := make([]byte, FrameSize(ExecEventPayloadSize))
		n, err := EncodeRecord(payload, sub.captureTsNanos, frame)
		if err != nil {
			continue
		}
		if !w.rotateIfNeeded(int64(n), now) {
			w.enterDegraded(now)
			w.Counters.DropsDegradedMode++
			continue
		}
		frames = append(frames, frame[:n])
		batchBytes += n
		records++
	}

	if records == 0 {
		return false
	}

	written := 0
	for _, f := range frames {
		n, err := w.sink.Write(f)
		written += n
		if err != nil {
			w.Counters.IOErrorsWrite++
			w.Counters.DropsDegradedMode += uint64(records)
			w.enterDegraded(now)
			return true
		}
	}
	w.bytesInFile += int64(written)
	w.Counters.MessagesWritten += uint64(records)
	w.Counters.BytesWritten += uint64(written)
	return true
}

func (w *Writer) rotateIfNeeded(nextRecordBytes int64, now time.Time) bool {
	if w.currentPath == "" {
		return w.rotateFile(now)
	}
	timeRotate := now.Sub(w.fileOpenedAt) >= w.cfg.RotateInterval
	sizeRotate := w.bytesInFile+nextRecordBytes > w.cfg.RotateMaxBytes
	if !timeRotate && !sizeRotate {
		return true
	}
	return w.rotateFile(now)
}

func (w *Writer) rotateFile(now time.Time) bool {
	path := w.makeFilename(now)
	if err := w.sink.Create(path); err != nil {
		w.Counters.IOErrorsOpen++
		return false
	}
	w.currentPath = path
	w.bytesInFile = 0
	w.fileOpenedAt = now
	w.fileSeq++
	w.Counters.FilesRotated++
	return true
}

func (w *Writer) makeFilename(now time.Time) string {
	return fmt.Sprintf("%s/%s%s_seq%06d.bin", w.cfg.OutputDir, DefaultFilenamePrefix, now.UTC().Format("20060102_150405"), w.fileSeq)
}

func (w *Writer) enterDegraded(now time.Time) {
	if w.degraded {
		return
	}
	w.degraded = true
	w.nextRecovery = now.Add(w.recoveryBackoff)
}

func (w *Writer) recoverIfDue(now time.Time) {
	if now.Before(w.nextRecovery) {
		return
	}
	if w.rotateFile(now) {
		w.degraded = false
		w.recoveryBackoff = w.cfg.RecoveryInitial
		return
	}
	w.recoveryBackoff *= 2
	if w.recoveryBackoff > w.cfg.RecoveryMax {
		w.recoveryBackoff = w.cfg.RecoveryMax
	}
	w.nextRecovery = now.Add(w.recoveryBackoff)
}

// IsDegraded reports whether the writer is currently dropping submissions.
func (w *Writer) IsDegraded() bool { return w.degraded }

// Close closes the current capture file.
func (w *Writer) Close() error { return w.sink.Close() }
