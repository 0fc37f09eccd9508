// Command incident compares a golden audit directory against a freshly
// produced one, using internal/auditdiff's boundary-only record-by-record
// comparison. Exit codes match spec.md §6: 0 match, 2 mismatch, 4 I/O or
// decode error.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditdiff"
)

const (
	exitMatch    = 0
	exitMismatch = 2
	exitIOError  = 4
)

func main() {
	goldenDir := flag.String("golden-dir", "", "directory holding the golden (expected) audit log")
	actualDir := flag.String("actual-dir", "", "directory holding the freshly produced audit log")
	incidentID := flag.String("incident-id", "", "optional incident ticket identifier to stamp onto the report; a run id is generated if empty")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *goldenDir == "" || *actualDir == "" {
		slog.Error("incident: both -golden-dir and -actual-dir are required")
		os.Exit(exitIOError)
	}

	runID := *incidentID
	if runID == "" {
		runID = uuid.NewString()
	}

	result, stats, report, err := auditdiff.DiffDirectories(*goldenDir, *actualDir)
	if err != nil {
		slog.Error("incident: comparison failed", "run_id", runID, "error", err)
		os.Exit(exitIOError)
	}

	fmt.Printf("Incident run: %s\n", runID)
	fmt.Print(report)

	slog.Info("incident: comparison complete", "run_id", runID, "result", result.String(),
		"files_compared", stats.FilesCompared, "records_compared", stats.RecordsCompared,
		"mismatches", stats.Mismatches)

	switch result {
	case auditdiff.Match:
		os.Exit(exitMatch)
	case auditdiff.Mismatch:
		os.Exit(exitMismatch)
	default:
		os.Exit(exitIOError)
	}
}
