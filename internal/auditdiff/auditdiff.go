// Package auditdiff compares two audit directories record-by-record,
// deliberately kept boundary-only per spec.md's exclusion of audit-log
// diff tooling from the core reconciliation engine. Grounded on
// orig:src/persist/audit_diff.cpp, with the original's whitelist-rule
// engine dropped (see DESIGN.md) since nothing in SPEC_FULL.md's
// incident-tooling scope calls for it.
package auditdiff

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditcodec"
)

// Result classifies the overall comparison outcome.
type Result int

const (
	Match Result = iota
	Mismatch
	IOError
	BadFormat
)

func (r Result) String() string {
	switch r {
	case Match:
		return "Match"
	case Mismatch:
		return "Mismatch"
	case IOError:
		return "IOError"
	case BadFormat:
		return "BadFormat"
	default:
		return "Unknown"
	}
}

// Stats accumulates the comparison's counters.
type Stats struct {
	FilesCompared   int
	RecordsCompared int
	BytesCompared   int64
	Mismatches      int
	ExtraFiles      int
	MissingFiles    int
}

// MismatchDetail describes one divergence between the two directories.
type MismatchDetail struct {
	File        string
	RecordIndex int
	Reason      string
}

func listFiles(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// diffRecords compares two framed-record audit files, decoding each
// record via internal/auditcodec so mismatches are reported at record
// granularity rather than raw byte offsets.
func diffRecords(expectedPath, actualPath, relName string, stats *Stats, mismatches *[]MismatchDetail) (Result, error) {
	expectedData, err := os.ReadFile(expectedPath)
	if err != nil {
		return IOError, err
	}
	actualData, err := os.ReadFile(actualPath)
	if err != nil {
		return IOError, err
	}

	expOff, actOff := 0, 0
	index := 0
	for {
		expExhausted := expOff >= len(expectedData)
		actExhausted := actOff >= len(actualData)
		if expExhausted && actExhausted {
			break
		}
		if expExhausted != actExhausted {
			stats.Mismatches++
			*mismatches = append(*mismatches, MismatchDetail{File: relName, RecordIndex: index, Reason: "record count mismatch"})
			break
		}

		expRec, expErr := auditcodec.Decode(expectedData[expOff:])
		actRec, actErr := auditcodec.Decode(actualData[actOff:])
		// IsGracefulEOF is only true for a clean, zero-length remainder;
		// TruncatedMidRecord (non-zero but insufficient remainder) falls
		// through to here and is reported as corruption, per spec.md §4.9.
		if expErr != auditcodec.Ok && !auditcodec.IsGracefulEOF(expErr) {
			return BadFormat, fmt.Errorf("auditdiff: decode %s (expected side): %s", relName, expErr)
		}
		if actErr != auditcodec.Ok && !auditcodec.IsGracefulEOF(actErr) {
			return BadFormat, fmt.Errorf("auditdiff: decode %s (actual side): %s", relName, actErr)
		}
		if auditcodec.IsGracefulEOF(expErr) && auditcodec.IsGracefulEOF(actErr) {
			break
		}
		if auditcodec.IsGracefulEOF(expErr) != auditcodec.IsGracefulEOF(actErr) {
			stats.Mismatches++
			*mismatches = append(*mismatches, MismatchDetail{File: relName, RecordIndex: index, Reason: "record count mismatch"})
			break
		}

		expSize := auditcodec.RecordSize(int(expRec.PayloadLen))
		actSize := auditcodec.RecordSize(int(actRec.PayloadLen))
		recBytes := expectedData[expOff : expOff+expSize]
		actBytes := actualData[actOff : actOff+actSize]

		stats.RecordsCompared++
		stats.BytesCompared += int64(min(len(recBytes), len(actBytes)))

		if !recordsEqual(expRec, actRec) {
			stats.Mismatches++
			*mismatches = append(*mismatches, MismatchDetail{
				File:        relName,
				RecordIndex: index,
				Reason:      fmt.Sprintf("record %d differs (type=%v vs %v)", index, expRec.Type, actRec.Type),
			})
		}

		expOff += expSize
		actOff += actSize
		index++
	}

	return Match, nil
}

func recordsEqual(a, b auditcodec.DecodedRecord) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case auditcodec.RecordDivergence:
		return a.Divergence == b.Divergence
	case auditcodec.RecordSequenceGap:
		return a.Gap == b.Gap
	default:
		return true
	}
}

// DiffDirectories compares every file common to both directories
// record-by-record, reports files present in only one side, and returns
// the overall Result plus a human-readable report.
func DiffDirectories(expectedDir, actualDir string) (Result, Stats, string, error) {
	var stats Stats
	var mismatches []MismatchDetail

	expectedFiles, err := listFiles(expectedDir)
	if err != nil {
		return IOError, stats, "", fmt.Errorf("auditdiff: list %s: %w", expectedDir, err)
	}
	actualFiles, err := listFiles(actualDir)
	if err != nil {
		return IOError, stats, "", fmt.Errorf("auditdiff: list %s: %w", actualDir, err)
	}

	actualSet := make(map[string]bool, len(actualFiles))
	for _, f := range actualFiles {
		actualSet[f] = true
	}
	expectedSet := make(map[string]bool, len(expectedFiles))
	for _, f := range expectedFiles {
		expectedSet[f] = true
	}

	for _, rel := range expectedFiles {
		if !actualSet[rel] {
			stats.MissingFiles++
			stats.Mismatches++
			mismatches = append(mismatches, MismatchDetail{File: rel, Reason: "missing from actual"})
			continue
		}
		stats.FilesCompared++
		res, derr := diffRecords(filepath.Join(expectedDir, rel), filepath.Join(actualDir, rel), rel, &stats, &mismatches)
		if res == IOError || res == BadFormat {
			return res, stats, "", derr
		}
	}
	for _, rel := range actualFiles {
		if !expectedSet[rel] {
			stats.ExtraFiles++
			stats.Mismatches++
			mismatches = append(mismatches, MismatchDetail{File: rel, Reason: "extra file in actual"})
		}
	}

	overall := Match
	if stats.Mismatches > 0 {
		overall = Mismatch
	}
	return overall, stats, buildReport(overall, stats, mismatches), nil
}

func buildReport(result Result, stats Stats, mismatches []MismatchDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Audit Diff Report ---\n")
	fmt.Fprintf(&b, "Status: %s\n", result)
	fmt.Fprintf(&b, "Files compared: %d\n", stats.FilesCompared)
	fmt.Fprintf(&b, "Records compared: %d\n", stats.RecordsCompared)
	fmt.Fprintf(&b, "Mismatches: %d\n", stats.Mismatches)
	fmt.Fprintf(&b, "Missing files: %d\n", stats.MissingFiles)
	fmt.Fprintf(&b, "Extra files: %d\n\n", stats.ExtraFiles)
	for i, m := range mismatches {
		fmt.Fprintf(&b, "Mismatch %d:\n  File: %s\n  Record index: %d\n  Reason: %s\n\n", i+1, m.File, m.RecordIndex, m.Reason)
	}
	fmt.Fprintf(&b, "--- End Report ---\n")
	return b.String()
}
