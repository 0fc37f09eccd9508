// Package replay implements the offline replay engine that feeds captured
// wire records back through the reconciler at a configurable pace,
// grounded on orig:src/api/replay_engine.{hpp,cpp}.
package replay

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wirecapture"
)

// Result classifies why Run stopped, mirroring the original's ReplayResult.
type Result int

const (
	Success Result = iota
	WireReadError
	ConfigError
	PushBackpressure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case WireReadError:
		return "WireReadError"
	case ConfigError:
		return "ConfigError"
	case PushBackpressure:
		return "PushBackpressure"
	default:
		return "Unknown"
	}
}

// Config configures one replay run.
type Config struct {
	WireInputs []string
	FromNanos  *uint64
	ToNanos    *uint64
	// Speed is "realtime", "fast", "max", or a numeric playback multiplier
	// parsed as a float (e.g. "2.0" plays back at 2x captured pacing).
	Speed      string
	MaxRecords int
}

// Stats accumulates the replay loop's observable counters (spec.md §6).
type Stats struct {
	ProcessedOK          int
	ReadErrors           int
	CorruptRecords       int
	PushFailures         int
	SkippedDueToLimit    int
	BackwardTimestamps   int
}

// Sink is the minimal push target a replay drives events into — normally
// the reconciler's primary/dropcopy exec-event rings.
type Sink interface {
	TryPush(ev execevent.ExecEvent) bool
}

const maxPushAttempts = 4096
const yieldAttempts = 32

func parseSpeed(speed string) (value float64, fast bool, err error) {
	if speed == "" {
		speed = "fast"
	}
	switch speed {
	case "fast", "max":
		return 1.0, true, nil
	case "realtime":
		return 1.0, false, nil
	}
	v, parseErr := strconv.ParseFloat(speed, 64)
	if parseErr != nil {
		return 0, false, fmt.Errorf("replay: invalid speed %q", speed)
	}
	return v, false, nil
}

// sourceFromSession derives the logical feed a wire-captured event belongs
// to from its session id: even sessions are Primary, odd are DropCopy,
// per orig:src/api/replay_engine.cpp's source_from_wire.
func sourceFromSession(sessionID uint16) execevent.Source {
	if sessionID%2 == 0 {
		return execevent.Primary
	}
	return execevent.DropCopy
}

// Engine drives one replay run, pushing exec events from wire-capture files
// into per-source sinks (typically reconciler rings) with optional
// wall-clock pacing reconstructed from the original capture timestamps.
type Engine struct {
	primarySink  Sink
	dropcopySink Sink
	sleepFn      func(time.Duration)
}

// New constructs an Engine over the given per-source sinks. sleepFn
// defaults to time.Sleep; tests may substitute a no-op or recording stub.
func New(primarySink, dropcopySink Sink) *Engine {
	return &Engine{primarySink: primarySink, dropcopySink: dropcopySink, sleepFn: time.Sleep}
}

// Run replays cfg.WireInputs in capture order, returning the outcome and
// accumulated stats. A speed of "max"/"fast" pushes events as fast as the
// sinks accept them; "realtime" (or a numeric multiplier) sleeps between
// events to reproduce the delta between their captured timestamps.
func (e *Engine) Run(cfg Config) (Result, Stats, error) {
	var stats Stats

	speed, fast, err := parseSpeed(cfg.Speed)
	if err != nil {
		return ConfigError, stats, err
	}
	if !fast && speed <= 0 {
		return ConfigError, stats, fmt.Errorf("replay: speed must be > 0 unless fast/max is set")
	}
	if len(cfg.WireInputs) == 0 {
		return ConfigError, stats, fmt.Errorf("replay: no input provided")
	}

	opts := wirecapture.ReaderOptions{Files: cfg.WireInputs}
	if cfg.FromNanos != nil && cfg.ToNanos != nil {
		opts.UseTimeWindow = true
		opts.WindowStartNs = *cfg.FromNanos
		opts.WindowEndNs = *cfg.ToNanos
	}
	reader := wirecapture.NewReader(opts)
	if !reader.Open() {
		return WireReadError, stats, fmt.Errorf("replay: failed to open wire input")
	}
	defer reader.Close()

	var lastTs uint64
	firstRecord := true

	for {
		ev, captureTs, status := reader.Next()
		switch status {
		case wirecapture.ReadEndOfStream:
			return Success, stats, nil
		case wirecapture.ReadOk:
			// fall through to processing below
		case wirecapture.ReadTruncated, wirecapture.ReadInvalidLength, wirecapture.ReadChecksumMismatch:
			stats.CorruptRecords++
			continue
		case wirecapture.ReadIOError:
			stats.ReadErrors++
			return WireReadError, stats, fmt.Errorf("replay: wire log IO error")
		default:
			stats.ReadErrors++
			return WireReadError, stats, fmt.Errorf("replay: unexpected wire log status %d", status)
		}

		if cfg.MaxRecords > 0 && stats.ProcessedOK >= cfg.MaxRecords {
			stats.SkippedDueToLimit++
			return Success, stats, nil
		}

		src := sourceFromSession(ev.SessionID)
		sink := e.primarySink
		if src == execevent.DropCopy {
			sink = e.dropcopySink
		}

		if !e.pushWithBackoff(sink, ev) {
			stats.PushFailures++
			return PushBackpressure, stats, fmt.Errorf("replay: ring backpressure exceeded while pushing event")
		}

		if !fast {
			if firstRecord {
				firstRecord = false
			} else {
				var delta uint64
				if captureTs < lastTs {
					stats.BackwardTimestamps++
				} else {
					delta = captureTs - lastTs
				}
				if delta > 0 && speed > 0 {
					sleepNanos := time.Duration(float64(delta) / speed)
					if sleepNanos > 0 {
						e.sleepFn(sleepNanos)
					}
				}
			}
		}

		lastTs = captureTs
		stats.ProcessedOK++
		if cfg.MaxRecords > 0 && stats.ProcessedOK >= cfg.MaxRecords {
			stats.SkippedDueToLimit++
			return Success, stats, nil
		}
	}
}

func (e *Engine) pushWithBackoff(sink Sink, ev execevent.ExecEvent) bool {
	for attempt := 0; attempt < maxPushAttempts; attempt++ {
		if sink.TryPush(ev) {
			return true
		}
		if attempt < yieldAttempts {
			runtime.Gosched()
			continue
		}
		e.sleepFn(50 * time.Microsecond)
	}
	return false
}
