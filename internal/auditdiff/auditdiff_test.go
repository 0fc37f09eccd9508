package auditdiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditcodec"
)

func writeDivergenceFile(t *testing.T, dir, name string, fingerprint uint64) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	buf := make([]byte, auditcodec.RecordSize(auditcodec.DivergencePayloadV1Size))
	_, err := auditcodec.EncodeDivergence(auditcodec.DivergencePayload{
		DivergenceType: 1,
		Fingerprint:    fingerprint,
		InternalCumQty: 100,
		DropCopyCumQty: 100,
	}, buf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestDiffDirectoriesIdenticalFilesMatch(t *testing.T) {
	expDir := t.TempDir()
	actDir := t.TempDir()
	writeDivergenceFile(t, expDir, "audit_1.bin", 0xABC)
	writeDivergenceFile(t, actDir, "audit_1.bin", 0xABC)

	result, stats, report, err := DiffDirectories(expDir, actDir)
	require.NoError(t, err)
	require.Equal(t, Match, result)
	require.Equal(t, 1, stats.FilesCompared)
	require.Equal(t, 1, stats.RecordsCompared)
	require.Zero(t, stats.Mismatches)
	require.Contains(t, report, "Status: Match")
}

func TestDiffDirectoriesDetectsRecordMismatch(t *testing.T) {
	expDir := t.TempDir()
	actDir := t.TempDir()
	writeDivergenceFile(t, expDir, "audit_1.bin", 0xABC)
	writeDivergenceFile(t, actDir, "audit_1.bin", 0xDEF)

	result, stats, _, err := DiffDirectories(expDir, actDir)
	require.NoError(t, err)
	require.Equal(t, Mismatch, result)
	require.Equal(t, 1, stats.Mismatches)
}

func TestDiffDirectoriesReportsMissingAndExtraFiles(t *testing.T) {
	expDir := t.TempDir()
	actDir := t.TempDir()
	writeDivergenceFile(t, expDir, "audit_1.bin", 0xABC)
	writeDivergenceFile(t, actDir, "audit_2.bin", 0xABC)

	result, stats, _, err := DiffDirectories(expDir, actDir)
	require.NoError(t, err)
	require.Equal(t, Mismatch, result)
	require.Equal(t, 1, stats.MissingFiles)
	require.Equal(t, 1, stats.ExtraFiles)
}

func TestDiffDirectoriesCountsMidRecordTruncationAsBadFormatEvenWhenBothSidesMatch(t *testing.T) {
	expDir := t.TempDir()
	actDir := t.TempDir()
	path1 := writeDivergenceFile(t, expDir, "audit_1.bin", 0xABC)
	path2 := writeDivergenceFile(t, actDir, "audit_1.bin", 0xABC)

	full, err := os.ReadFile(path1)
	require.NoError(t, err)
	truncated := full[:len(full)-5]
	require.NoError(t, os.WriteFile(path1, truncated, 0o644))
	require.NoError(t, os.WriteFile(path2, truncated, 0o644))

	result, _, _, err := DiffDirectories(expDir, actDir)
	require.Equal(t, BadFormat, result)
	require.Error(t, err, "identical tail corruption on both sides must not be silently reported as a clean Match")
}
