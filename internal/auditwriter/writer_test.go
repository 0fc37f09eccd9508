package auditwriter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditcodec"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/classifier"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/orderstate"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/reconciler"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ring"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/seqtracker"
)

// fakeSink is an in-memory FileSink so the writer's batching, rotation, and
// degraded-mode logic can be tested without touching disk.
type fakeSink struct {
	createPaths []string
	failCreate  bool
	failWrite   bool
	data        []byte
	closed      bool
}

func (f *fakeSink) Create(path string) error {
	if f.failCreate {
		return errors.New("fake create failure")
	}
	f.createPaths = append(f.createPaths, path)
	f.data = nil
	f.closed = false
	return nil
}

func (f *fakeSink) Write(p []byte) (int, error) {
	if f.failWrite {
		return 0, errors.New("fake write failure")
	}
	f.data = append(f.data, p...)
	return len(p), nil
}

func (f *fakeSink) Sync() error { return nil }

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func newTestWriter(t *testing.T, cfg Config) (*Writer, *fakeSink, *ring.SPSC[reconciler.DivergenceRecord], *ring.SPSC[seqtracker.GapEvent]) {
	t.Helper()
	divRing := ring.New[reconciler.DivergenceRecord](16)
	gapRing := ring.New[seqtracker.GapEvent](16)

	w := New(cfg, divRing, gapRing)
	sink := &fakeSink{}
	w.sink = sink
	return w, sink, divRing, gapRing
}

func sampleDivergenceRecord() reconciler.DivergenceRecord {
	return reconciler.DivergenceRecord{
		Fingerprint: 0xABCD,
		Kind:        classifier.QuantityMismatch,
		Primary:     orderstate.SideView{Status: execevent.StatusWorking, CumQty: 100},
		DropCopy:    orderstate.SideView{Status: execevent.StatusWorking, CumQty: 150},
		DetectNanos: 1000,
	}
}

func sampleGapEvent() seqtracker.GapEvent {
	return seqtracker.GapEvent{
		Source:      execevent.Primary,
		SessionID:   7,
		ExpectedSeq: 2,
		SeenSeq:     4,
		Kind:        seqtracker.Gap,
		DetectNanos: 2000,
	}
}

func baseTestConfig() Config {
	cfg := DefaultConfig()
	cfg.OutputDir = "/tmp/auditwriter-test"
	cfg.BatchMaxRecords = 2
	cfg.BatchMaxBytes = 1024
	cfg.FlushIdleTimeout = time.Hour // disable idle-based flush for deterministic tests
	cfg.StagingBufferBytes = 4096
	return cfg
}

func TestDrainOnceAppendsBothRingsAndFlushesAtBatchThreshold(t *testing.T) {
	cfg := baseTestConfig()
	w, sink, divRing, gapRing := newTestWriter(t, cfg)

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	require.True(t, gapRing.TryPush(sampleGapEvent()))

	did := w.DrainOnce()
	require.True(t, did)

	// BatchMaxRecords=2 and exactly 2 records were appended, so the batch
	// should have auto-flushed into the sink already.
	require.Equal(t, 0, w.stagingUsed)
	require.Equal(t, 0, w.batchRecords)
	require.Len(t, sink.data, auditcodec.RecordSize(auditcodec.DivergencePayloadV1Size)+auditcodec.RecordSize(auditcodec.GapPayloadV1Size))
	require.Len(t, sink.createPaths, 1)
}

func TestFlushIsNoOpWhenNothingStaged(t *testing.T) {
	cfg := baseTestConfig()
	w, sink, _, _ := newTestWriter(t, cfg)

	require.NoError(t, w.Flush())
	require.Empty(t, sink.createPaths)
}

func TestRotationBySizeOpensNewFile(t *testing.T) {
	cfg := baseTestConfig()
	cfg.RotateMaxBytes = int64(auditcodec.RecordSize(auditcodec.DivergencePayloadV1Size)) + 1
	cfg.BatchMaxRecords = 1000 // avoid batch-count flush, isolate size rotation
	w, sink, divRing, _ := newTestWriter(t, cfg)

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	require.True(t, w.DrainOnce())
	require.NoError(t, w.Flush())
	require.Len(t, sink.createPaths, 1)

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	require.True(t, w.DrainOnce())
	require.NoError(t, w.Flush())

	require.Len(t, sink.createPaths, 2)
	require.NotEqual(t, sink.createPaths[0], sink.createPaths[1])
}

func TestWriteFailureEntersDegradedAndDropsSubsequentRecords(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BatchMaxRecords = 1
	w, sink, divRing, _ := newTestWriter(t, cfg)

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	require.True(t, w.DrainOnce()) // opens file fine, flush triggers write failure below
	sink.failWrite = true

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	w.DrainOnce()

	// A record arriving after the failure is dropped and counted.
	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	w.DrainOnce()

	require.True(t, w.IsDegraded())
	require.EqualValues(t, 1, w.Counters.WriterDropDivergence)
}

func TestDegradedModeRecoversAfterBackoffElapses(t *testing.T) {
	cfg := baseTestConfig()
	cfg.RecoveryBackoffMin = time.Millisecond
	cfg.RecoveryBackoffMax = 10 * time.Millisecond
	w, sink, _, _ := newTestWriter(t, cfg)

	fixedNow := time.Now()
	w.nowFn = func() time.Time { return fixedNow }
	sink.failCreate = true
	w.enterDegraded(fixedNow)

	w.maybeRecover(fixedNow) // still within backoff window
	require.True(t, w.IsDegraded())
	require.EqualValues(t, 0, w.Counters.AuditRecoveryAttempts)

	fixedNow = fixedNow.Add(2 * time.Millisecond)
	w.nowFn = func() time.Time { return fixedNow }
	w.maybeRecover(fixedNow)
	require.True(t, w.IsDegraded()) // create still failing
	require.EqualValues(t, 1, w.Counters.AuditRecoveryAttempts)
	require.EqualValues(t, 1, w.Counters.AuditIOErrors)

	sink.failCreate = false
	fixedNow = fixedNow.Add(4 * time.Millisecond)
	w.nowFn = func() time.Time { return fixedNow }
	w.maybeRecover(fixedNow)
	require.False(t, w.IsDegraded())
}

func TestAuditDegradedModeNanosAccumulatesAcrossCallsAndEpisodes(t *testing.T) {
	cfg := baseTestConfig()
	cfg.RecoveryBackoffMin = time.Millisecond
	cfg.RecoveryBackoffMax = 10 * time.Millisecond
	w, sink, _, _ := newTestWriter(t, cfg)

	fixedNow := time.Now()
	w.nowFn = func() time.Time { return fixedNow }
	sink.failCreate = true
	w.enterDegraded(fixedNow)

	// Two observations within the first degraded episode must both add to
	// the running total, not just reflect the latest gap.
	fixedNow = fixedNow.Add(2 * time.Millisecond)
	w.maybeRecover(fixedNow)
	require.EqualValues(t, 2*time.Millisecond, w.Counters.AuditDegradedModeNanos)

	fixedNow = fixedNow.Add(3 * time.Millisecond)
	w.maybeRecover(fixedNow)
	require.EqualValues(t, 5*time.Millisecond, w.Counters.AuditDegradedModeNanos)

	// Recover, then degrade a second time: the total must keep accumulating
	// rather than resetting to the new episode's duration alone.
	sink.failCreate = false
	fixedNow = fixedNow.Add(4 * time.Millisecond)
	w.maybeRecover(fixedNow)
	require.False(t, w.IsDegraded())
	require.EqualValues(t, 9*time.Millisecond, w.Counters.AuditDegradedModeNanos)

	sink.failCreate = true
	w.enterDegraded(fixedNow)
	fixedNow = fixedNow.Add(6 * time.Millisecond)
	w.maybeRecover(fixedNow)
	require.EqualValues(t, 15*time.Millisecond, w.Counters.AuditDegradedModeNanos)
}

func TestDegradedModeDropsRecordsWithoutGrowingStagingBuffer(t *testing.T) {
	cfg := baseTestConfig()
	w, sink, divRing, gapRing := newTestWriter(t, cfg)
	sink.failCreate = true

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	w.DrainOnce()
	require.True(t, w.IsDegraded())
	require.EqualValues(t, 1, w.Counters.WriterDropDivergence)

	require.True(t, gapRing.TryPush(sampleGapEvent()))
	w.DrainOnce()
	require.EqualValues(t, 1, w.Counters.WriterDropGaps)
	require.Equal(t, 0, w.stagingUsed)
}

func TestCloseFlushesPendingBytesAndClosesSink(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BatchMaxRecords = 1000 // force manual Close to be the thing that flushes
	w, sink, divRing, _ := newTestWriter(t, cfg)

	require.True(t, divRing.TryPush(sampleDivergenceRecord()))
	w.DrainOnce()
	require.NotZero(t, w.stagingUsed)

	require.NoError(t, w.Close())
	require.True(t, sink.closed)
	require.NotEmpty(t, sink.data)
}
