// Package service composes the reconciliation core into the goroutine
// shape spec.md §5 describes: two ingest bridges (primary, dropcopy), one
// reconciler goroutine, one audit-writer goroutine, and (when enabled)
// one wire-capture-writer goroutine, coordinated through context
// cancellation with the producers-then-reconciler-then-writer join order
// spec.md §5 mandates. This is the "service object" cmd/recond wires up;
// it owns no reconciliation semantics of its own.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditwriter"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/clock"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ingest"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/reconciler"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ring"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/seqtracker"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/store"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wheel"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wirecapture"
)

// Config bundles the tunables needed to construct a Service.
type Config struct {
	Reconciler        reconciler.Config
	AuditWriter       auditwriter.Config
	RingCapacity      int
	StoreCapacityHint int
	StoreProbeLimit   int
	ShutdownGrace     time.Duration

	// WireCapture configures the raw-event capture writer described in
	// spec.md §4.11. Capture is disabled when OutputDir is empty, which
	// is DefaultConfig's behavior so constructing a Service in tests
	// never touches disk unless a caller opts in explicitly.
	WireCapture wirecapture.Config
}

// DefaultConfig mirrors spec.md §6's documented defaults for the pieces
// this package owns directly. Wire capture is left disabled (zero-value
// Config); cmd/recond opts in by setting WireCapture from its own config.
func DefaultConfig() Config {
	return Config{
		Reconciler:        reconciler.DefaultConfig(),
		AuditWriter:       auditwriter.DefaultConfig(),
		RingCapacity:      4096,
		StoreCapacityHint: 16384,
		StoreProbeLimit:   8,
		ShutdownGrace:     5 * time.Second,
	}
}

// BridgeStats counts outcomes of the ingest-channel-to-ring bridge, the
// one ambient concern spec.md §5's "producers drop and count" policy
// assigns to the producer side rather than the reconciler.
type BridgeStats struct {
	Received uint64
	RingDrops uint64
}

// Service owns the rings, store, wheel, reconciler, and audit writer for
// one live run, and drives their goroutines per spec.md §5.
type Service struct {
	cfg   Config
	clock *clock.Source

	primaryRing *ring.SPSC[execevent.ExecEvent]
	dropRing    *ring.SPSC[execevent.ExecEvent]
	gapRing     *ring.SPSC[seqtracker.GapEvent]
	divRing     *ring.SPSC[reconciler.DivergenceRecord]

	Reconciler *reconciler.Reconciler
	Writer     *auditwriter.Writer

	// Capture is nil unless cfg.WireCapture.OutputDir is non-empty, in
	// which case bridge submits every ingested event to it alongside
	// pushing onto the reconciler ring.
	Capture *wirecapture.Writer

	PrimaryStats  BridgeStats
	DropcopyStats BridgeStats

	wg sync.WaitGroup
}

// New constructs a Service. sink backs the audit writer's output files.
func New(cfg Config, clk *clock.Source, sink auditwriter.FileSink) (*Service, error) {
	st, err := store.New(cfg.StoreCapacityHint, cfg.StoreProbeLimit)
	if err != nil {
		return nil, err
	}
	wh := wheel.New(clk.NowNanos())

	primaryRing := ring.New[execevent.ExecEvent](cfg.RingCapacity)
	dropRing := ring.New[execevent.ExecEvent](cfg.RingCapacity)
	gapRing := ring.New[seqtracker.GapEvent](cfg.RingCapacity)
	divRing := ring.New[reconciler.DivergenceRecord](cfg.RingCapacity)

	rec := reconciler.New(cfg.Reconciler, primaryRing, dropRing, gapRing, divRing, st, wh)
	writer := auditwriter.New(cfg.AuditWriter, divRing, gapRing)
	if sink != nil {
		writer.SetSink(sink)
	}

	var capture *wirecapture.Writer
	if cfg.WireCapture.OutputDir != "" {
		capture = wirecapture.New(cfg.WireCapture)
	}

	return &Service{
		cfg:         cfg,
		clock:       clk,
		primaryRing: primaryRing,
		dropRing:    dropRing,
		gapRing:     gapRing,
		divRing:     divRing,
		Reconciler:  rec,
		Writer:      writer,
		Capture:     capture,
	}, nil
}

// SetCaptureSink overrides the wire-capture writer's FileSink. No-op when
// wire capture is disabled.
func (s *Service) SetCaptureSink(sink wirecapture.FileSink) {
	if s.Capture != nil {
		s.Capture.SetSink(sink)
	}
}

// Run starts the primary/dropcopy ingest sources, the reconciler, and
// the audit writer, then blocks until ctx is canceled. Join order on
// shutdown is producers, then reconciler, then writer, matching
// spec.md §5.
func (s *Service) Run(ctx context.Context, primarySource, dropcopySource ingest.EventSource) {
	producerCtx, cancelProducers := context.WithCancel(ctx)

	primaryCh := make(chan execevent.ExecEvent, s.cfg.RingCapacity)
	dropCh := make(chan execevent.ExecEvent, s.cfg.RingCapacity)

	var producerWG sync.WaitGroup
	producerWG.Add(2)
	go func() {
		defer producerWG.Done()
		_ = primarySource.Run(producerCtx, primaryCh)
	}()
	go func() {
		defer producerWG.Done()
		_ = dropcopySource.Run(producerCtx, dropCh)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.bridge(producerCtx, primaryCh, s.primaryRing, &s.PrimaryStats)
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.bridge(producerCtx, dropCh, s.dropRing, &s.DropcopyStats)
	}()

	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		s.Reconciler.Run(ctx, s.clock.NowNanos)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.runWriter(ctx)
	}()

	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		s.runCapture(ctx)
	}()

	<-ctx.Done()
	cancelProducers()
	producerWG.Wait()
	s.wg.Wait()

	<-reconcilerDone
	<-writerDone
	<-captureDone
}

// bridge copies decoded events from an ingest channel onto the
// corresponding reconciler ring, dropping (and counting) on backpressure
// rather than blocking, per spec.md §5's backpressure policy.
func (s *Service) bridge(ctx context.Context, in <-chan execevent.ExecEvent, out *ring.SPSC[execevent.ExecEvent], stats *BridgeStats) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			atomic.AddUint64(&stats.Received, 1)
			if s.Capture != nil {
				s.Capture.TrySubmit(ev, uint64(s.clock.NowNanos()))
			}
			if !out.TryPush(ev) {
				atomic.AddUint64(&stats.RingDrops, 1)
			}
		}
	}
}

// runCapture drains the wire-capture writer until ctx is canceled, then
// performs a final bounded drain before closing it. With a disabled Capture
// (nil) it only waits for ctx to be canceled, so callers never need to guard
// the join.
func (s *Service) runCapture(ctx context.Context) {
	if s.Capture == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			s.finalDrainCapture()
			_ = s.Capture.Close()
			return
		default:
			if !s.Capture.DrainOnce() {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

func (s *Service) finalDrainCapture() {
	deadline := time.Now().Add(s.cfg.ShutdownGrace)
	for time.Now().Before(deadline) {
		if !s.Capture.DrainOnce() {
			return
		}
	}
}

// runWriter drains the audit writer until ctx is canceled, then performs
// a final drain pass up to ShutdownGrace before closing the sink.
func (s *Service) runWriter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.finalDrain()
			_ = s.Writer.Close()
			return
		default:
			if !s.Writer.DrainOnce() {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

func (s *Service) finalDrain() {
	deadline := time.Now().Add(s.cfg.ShutdownGrace)
	for time.Now().Before(deadline) {
		if !s.Writer.DrainOnce() {
			return
		}
	}
}
