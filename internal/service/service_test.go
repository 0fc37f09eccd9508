package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/clock"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wirecapture"
)

type memSink struct {
	mu      sync.Mutex
	data    map[string][]byte
	current string
}

func newMemSink() *memSink { return &memSink{data: make(map[string][]byte)} }

func (m *memSink) Create(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = nil
	m.current = path
	return nil
}
func (m *memSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.current] = append(m.data[m.current], p...)
	return len(p), nil
}
func (m *memSink) Sync() error  { return nil }
func (m *memSink) Close() error { return nil }

type fixedSource struct {
	events []execevent.ExecEvent
}

func (f *fixedSource) Run(ctx context.Context, out chan<- execevent.ExecEvent) error {
	for _, ev := range f.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func TestNewConstructsWiredService(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingCapacity = 16
	cfg.StoreCapacityHint = 16

	svc, err := New(cfg, clock.New(), newMemSink())
	require.NoError(t, err)
	require.NotNil(t, svc.Reconciler)
	require.NotNil(t, svc.Writer)
}

func TestRunProcessesEventsAndShutsDownCleanly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingCapacity = 16
	cfg.StoreCapacityHint = 16
	cfg.AuditWriter.FlushIdleTimeout = time.Millisecond

	svc, err := New(cfg, clock.New(), newMemSink())
	require.NoError(t, err)

	var ev execevent.ExecEvent
	ev.SessionID = 1
	ev.ClOrdID.SetString("CL1")
	ev.OrdStatus = execevent.StatusNew
	ev.ExecType = execevent.ExecNew

	primary := &fixedSource{events: []execevent.ExecEvent{ev}}
	dropcopy := &fixedSource{events: nil}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.Run(ctx, primary, dropcopy)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service.Run did not return after context cancellation")
	}

	require.GreaterOrEqual(t, svc.PrimaryStats.Received, uint64(1))
}

func TestNewLeavesCaptureDisabledByDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingCapacity = 16
	cfg.StoreCapacityHint = 16

	svc, err := New(cfg, clock.New(), newMemSink())
	require.NoError(t, err)
	require.Nil(t, svc.Capture)

	svc.SetCaptureSink(newMemSink())
}

func TestRunSubmitsIngestedEventsToCaptureWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingCapacity = 16
	cfg.StoreCapacityHint = 16
	cfg.AuditWriter.FlushIdleTimeout = time.Millisecond
	cfg.WireCapture = wirecapture.DefaultConfig()
	cfg.WireCapture.OutputDir = "capture"
	cfg.WireCapture.BatchRecords = 1

	svc, err := New(cfg, clock.New(), newMemSink())
	require.NoError(t, err)
	require.NotNil(t, svc.Capture)
	svc.SetCaptureSink(newMemSink())

	var ev execevent.ExecEvent
	ev.SessionID = 1
	ev.ClOrdID.SetString("CL1")
	ev.OrdStatus = execevent.StatusNew
	ev.ExecType = execevent.ExecNew

	primary := &fixedSource{events: []execevent.ExecEvent{ev}}
	dropcopy := &fixedSource{events: nil}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.Run(ctx, primary, dropcopy)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service.Run did not return after context cancellation")
	}

	require.GreaterOrEqual(t, svc.Capture.Counters.MessagesSubmitted, uint64(1))
}
