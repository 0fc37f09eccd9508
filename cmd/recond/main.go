// Command recond is the live reconciliation daemon. It subscribes to the
// primary and dropcopy execution-report feeds over Redis pub/sub, drives
// the reconciler and audit writer on their own goroutines (spec.md §5),
// and serves /metrics and /healthz over HTTP, in the teacher's
// gorilla/mux router style (see internal/api/server.go, cmd/api/main.go).
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/clock"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/config"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/ingest/redisfeed"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/metrics"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/service"
)

func main() {
	cfg := config.Get()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}))
	slog.SetDefault(logger)

	svcCfg := service.DefaultConfig()
	svcCfg.Reconciler = cfg.Reconciler.ToReconcilerConfig()
	svcCfg.AuditWriter = cfg.AuditLog.ToAuditWriterConfig()
	svcCfg.WireCapture = cfg.WireCapture.ToWireCaptureConfig()

	clk := clock.New()
	svc, err := service.New(svcCfg, clk, nil)
	if err != nil {
		slog.Error("recond: failed to construct service", "error", err)
		os.Exit(3)
	}

	primarySource := redisfeed.New(redisfeed.Config{
		Addr:    cfg.Redis.Addr,
		Channel: cfg.Redis.PrimaryChannel,
		Stream:  execevent.Primary,
	}, clk)
	dropSource := redisfeed.New(redisfeed.Config{
		Addr:    cfg.Redis.Addr,
		Channel: cfg.Redis.DropCopyChannel,
		Stream:  execevent.DropCopy,
	}, clk)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	go reportMetricsLoop(svc, m)

	router := newRouter(reg)
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("recond: received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("recond: HTTP server shutdown error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		svc.Run(ctx, primarySource, dropSource)
		close(done)
	}()

	slog.Info("recond: listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("recond: HTTP server failed: %v", err)
	}

	<-done
	slog.Info("recond: stopped")
}

// newRouter builds the HTTP surface, matching the teacher's mux.NewRouter
// plus HandleFunc registration pattern (internal/api/server.go, cmd/api).
// /metrics is served from the given gatherer rather than the global
// DefaultGatherer, so tests can point it at an isolated registry.
func newRouter(gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return router
}

// reportMetricsLoop periodically snapshots the service's live counters
// into the Prometheus gauges, per internal/metrics's Snapshot-on-interval
// design (avoids wiring Prometheus into the hot reconciliation path).
func reportMetricsLoop(svc *service.Service, m *metrics.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.SnapshotReconciler(svc.Reconciler.Counters)
		m.SnapshotAuditWriter(svc.Writer.Counters)
		if svc.Capture != nil {
			m.SnapshotWireCapture(svc.Capture.Counters)
		}
	}
}
