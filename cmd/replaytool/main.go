// Command replaytool drives a wire-capture directory through the same
// reconciler and audit writer the live daemon uses, producing a
// byte-identical audit directory for a given input and configuration
// (spec.md §2's replay determinism contract). Exit codes: 0 success,
// 3 config error, 4 I/O error, 5 replay/engine error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditwriter"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/reconciler"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/replay"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ring"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/seqtracker"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/store"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wheel"
)

const (
	exitSuccess     = 0
	exitConfigError = 3
	exitIOError     = 4
	exitEngineError = 5
)

func main() {
	wireDir := flag.String("wire-dir", "", "directory of wire-capture files to replay")
	filenamePrefix := flag.String("prefix", "wire_capture_", "wire-capture filename prefix")
	auditDir := flag.String("audit-dir", "./audit_logs", "output directory for the audit log")
	speed := flag.String("speed", "fast", `replay pacing: "fast", "max", "realtime", or a numeric multiplier`)
	maxRecords := flag.Int("max-records", 0, "stop after this many records (0 = unlimited)")
	ringCapacity := flag.Int("ring-capacity", 4096, "SPSC ring capacity")
	storeCapacity := flag.Int("store-capacity", 16384, "order-state store capacity hint")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *wireDir == "" {
		slog.Error("replaytool: -wire-dir is required")
		os.Exit(exitConfigError)
	}

	st, err := store.New(*storeCapacity, 8)
	if err != nil {
		slog.Error("replaytool: failed to construct store", "error", err)
		os.Exit(exitConfigError)
	}
	wh := wheel.New(0)

	primaryRing := ring.New[execevent.ExecEvent](*ringCapacity)
	dropRing := ring.New[execevent.ExecEvent](*ringCapacity)
	gapRing := ring.New[seqtracker.GapEvent](*ringCapacity)
	divRing := ring.New[reconciler.DivergenceRecord](*ringCapacity)

	if err := os.MkdirAll(*auditDir, 0o755); err != nil {
		slog.Error("replaytool: failed to create audit directory", "dir", *auditDir, "error", err)
		os.Exit(exitIOError)
	}

	auditCfg := auditwriter.DefaultConfig()
	auditCfg.OutputDir = *auditDir

	rec := reconciler.New(reconciler.DefaultConfig(), primaryRing, dropRing, gapRing, divRing, st, wh)
	writer := auditwriter.New(auditCfg, divRing, gapRing)

	// replayClock tracks the furthest-advanced event timestamp seen so
	// far, and is the reconciler's "now" during replay: grounded purely
	// in the captured data rather than wall-clock, so repeated replays
	// of the same wire log produce identical grace/gap-timeout decisions.
	var replayClock atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		rec.Run(ctx, func() int64 { return replayClock.Load() })
	}()

	engine := replay.New(
		&clockedSink{ring: primaryRing, clock: &replayClock},
		&clockedSink{ring: dropRing, clock: &replayClock},
	)

	result, stats, runErr := engine.Run(replay.Config{
		WireInputs: scanWireFiles(*wireDir, *filenamePrefix),
		Speed:      *speed,
		MaxRecords: *maxRecords,
	})

	slog.Info("replaytool: replay finished", "result", result.String(),
		"processed_ok", stats.ProcessedOK, "read_errors", stats.ReadErrors,
		"corrupt_records", stats.CorruptRecords, "push_failures", stats.PushFailures)

	// Drain whatever the reconciler has left in its rings, then shut it
	// down and flush the writer, same join order as internal/service.
	drainDeadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(drainDeadline) {
		if !rec.ProcessOnce(replayClock.Load()) {
			break
		}
	}
	cancel()
	<-reconcilerDone

	for writer.DrainOnce() {
	}
	if err := writer.Close(); err != nil {
		slog.Error("replaytool: failed to close audit writer", "error", err)
		os.Exit(exitIOError)
	}

	if runErr != nil {
		slog.Error("replaytool: replay engine error", "error", runErr)
		switch result {
		case replay.ConfigError:
			os.Exit(exitConfigError)
		case replay.WireReadError:
			os.Exit(exitIOError)
		default:
			os.Exit(exitEngineError)
		}
	}

	os.Exit(exitSuccess)
}

// clockedSink wraps a ring as a replay.Sink, advancing the shared replay
// clock to the pushed event's timestamp on every successful push.
type clockedSink struct {
	ring  *ring.SPSC[execevent.ExecEvent]
	clock *atomic.Int64
}

func (s *clockedSink) TryPush(ev execevent.ExecEvent) bool {
	if !s.ring.TryPush(ev) {
		return false
	}
	ts := int64(ev.SelectTimestamp())
	for {
		cur := s.clock.Load()
		if ts <= cur {
			return true
		}
		if s.clock.CompareAndSwap(cur, ts) {
			return true
		}
	}
}

func scanWireFiles(dir, prefix string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Error("replaytool: failed to read wire-capture directory", "dir", dir, "error", err)
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(prefix) > 0 && !hasPrefix(e.Name(), prefix) {
			continue
		}
		out = append(out, fmt.Sprintf("%s/%s", dir, e.Name()))
	}
	return out
}

func hasPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

