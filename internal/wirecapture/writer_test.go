package wirecapture

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCaptureSink struct {
	createPaths []string
	failCreate  bool
	failWrite   bool
	data        []byte
	closed      bool
}

func (f *fakeCaptureSink) Create(path string) error {
	if f.failCreate {
		return errors.New("fake create failure")
	}
	f.createPaths = append(f.createPaths, path)
	f.data = nil
	return nil
}

func (f *fakeCaptureSink) Write(p []byte) (int, error) {
	if f.failWrite {
		return 0, errors.New("fake write failure")
	}
	f.data = append(f.data, p...)
	return len(p), nil
}

func (f *fakeCaptureSink) Close() error {
	f.closed = true
	return nil
}

func newTestCaptureWriter(t *testing.T, cfg Config) (*Writer, *fakeCaptureSink) {
	t.Helper()
	w := New(cfg)
	sink := &fakeCaptureSink{}
	w.sink = sink
	return w, sink
}

func baseCaptureConfig() Config {
	cfg := DefaultConfig()
	cfg.OutputDir = "/tmp/wirecapture-test"
	cfg.BatchRecords = 4
	cfg.SubmitRingCapacity = 16
	return cfg
}

func TestTrySubmitThenDrainWritesFramedRecord(t *testing.T) {
	w, sink := newTestCaptureWriter(t, baseCaptureConfig())

	require.True(t, w.TrySubmit(sampleExecEvent(), 1000))
	require.True(t, w.DrainOnce())

	require.Len(t, sink.createPaths, 1)
	require.Len(t, sink.data, FrameSize(ExecEventPayloadSize))
	require.EqualValues(t, 1, w.Counters.MessagesWritten)
}

func TestDropsQueueFullWhenRingSaturated(t *testing.T) {
	cfg := baseCaptureConfig()
	cfg.SubmitRingCapacity = 2
	w, _ := newTestCaptureWriter(t, cfg)

	ev := sampleExecEvent()
	for i := 0; i < 2; i++ {
		require.True(t, w.TrySubmit(ev, 1))
	}
	require.False(t, w.TrySubmit(ev, 1))
	require.EqualValues(t, 1, w.Counters.DropsQueueFull)
}

func TestWriteFailureEntersDegradedMode(t *testing.T) {
	w, sink := newTestCaptureWriter(t, baseCaptureConfig())
	require.True(t, w.TrySubmit(sampleExecEvent(), 1))
	require.True(t, w.DrainOnce())

	sink.failWrite = true
	require.True(t, w.TrySubmit(sampleExecEvent(), 2))
	w.DrainOnce()

	require.True(t, w.IsDegraded())
	require.False(t, w.TrySubmit(sampleExecEvent(), 3))
	require.EqualValues(t, 2, w.Counters.DropsDegradedMode)
}

func TestDegradedModeRecoversAndResumesWriting(t *testing.T) {
	cfg := baseCaptureConfig()
	cfg.RecoveryInitial = time.Millisecond
	w, sink := newTestCaptureWriter(t, cfg)

	fixedNow := time.Now()
	w.nowFn = func() time.Time { return fixedNow }
	sink.failCreate = true
	w.enterDegraded(fixedNow)

	fixedNow = fixedNow.Add(2 * time.Millisecond)
	w.nowFn = func() time.Time { return fixedNow }
	w.recoverIfDue(fixedNow)
	require.True(t, w.IsDegraded())

	sink.failCreate = false
	fixedNow = fixedNow.Add(2 * time.Millisecond)
	w.nowFn = func() time.Time { return fixedNow }
	w.recoverIfDue(fixedNow)
	require.False(t, w.IsDegraded())
}

func TestRotationBySizeOpensNewFile(t *testing.T) {
	cfg := baseCaptureConfig()
	cfg.RotateMaxBytes = int64(FrameSize(ExecEventPayloadSize))
	cfg.BatchRecords = 1
	w, sink := newTestCaptureWriter(t, cfg)

	require.True(t, w.TrySubmit(sampleExecEvent(), 1))
	require.True(t, w.DrainOnce())
	require.Len(t, sink.createPaths, 1)

	require.True(t, w.TrySubmit(sampleExecEvent(), 2))
	require.True(t, w.DrainOnce())
	require.Len(t, sink.createPaths, 2)
	require.NotEqual(t, sink.createPaths[0], sink.createPaths[1])
}
