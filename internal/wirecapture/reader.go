package wirecapture

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

// ReadStatus enumerates Next's terminal and per-record outcomes, mirroring
// orig:src/persist/wire_log_reader.cpp's WireLogReadStatus.
type ReadStatus int

const (
	ReadOk ReadStatus = iota
	ReadEndOfStream
	ReadIOError
	ReadTruncated
	ReadInvalidLength
	ReadChecksumMismatch
)

// ReaderStats accumulates the counters the original reader tracks
// (spec.md §6).
type ReaderStats struct {
	FilesOpened      int
	BytesRead        int64
	RecordsOK        int64
	RecordsCorrupt   int64
	BadLength        int64
	ChecksumFailures int64
	TruncatedTail    int64
	FilteredOut      int64
	IOErrors         int64
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Directory is scanned for files with FilenamePrefix when Files is empty.
	Directory      string
	FilenamePrefix string
	Files          []string

	UseTimeWindow bool
	WindowStartNs uint64
	WindowEndNs   uint64
}

// Reader replays ExecEvents out of one or more wire-capture files in
// filename order, grounded on orig:src/persist/wire_log_reader.cpp.
type Reader struct {
	opts ReaderOptions

	files     []string
	fileIndex int

	buffer      []byte
	offset      int
	haveCurrent bool

	stats ReaderStats
}

// NewReader constructs a Reader from opts. If opts.WindowEndNs is zero and
// UseTimeWindow is set, the window is treated as unbounded on the high end.
func NewReader(opts ReaderOptions) *Reader {
	if opts.FilenamePrefix == "" {
		opts.FilenamePrefix = DefaultFilenamePrefix
	}
	if opts.UseTimeWindow && opts.WindowEndNs == 0 {
		opts.WindowEndNs = ^uint64(0)
	}
	return &Reader{opts: opts}
}

// Stats returns a snapshot of the reader's accumulated counters.
func (r *Reader) Stats() ReaderStats { return r.stats }

func scanCaptureFiles(dir, prefix string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}

// Open prepares the file list (explicit Files, or a directory scan) and
// opens the first one. Returns false if no files are available.
func (r *Reader) Open() bool {
	if len(r.opts.Files) > 0 {
		r.files = append([]string(nil), r.opts.Files...)
	} else if r.opts.Directory != "" {
		r.files = scanCaptureFiles(r.opts.Directory, r.opts.FilenamePrefix)
	}
	sort.Strings(r.files)
	r.fileIndex = 0
	if len(r.files) == 0 {
		return false
	}
	return r.openCurrentFile()
}

func (r *Reader) openCurrentFile() bool {
	r.closeFile()
	for r.fileIndex < len(r.files) {
		path := r.files[r.fileIndex]
		data, err := os.ReadFile(path)
		if err != nil {
			r.stats.IOErrors++
			r.fileIndex++
			continue
		}
		if len(data) == 0 {
			r.fileIndex++
			continue
		}
		r.buffer = data
		r.offset = 0
		r.haveCurrent = true
		r.stats.FilesOpened++
		r.stats.BytesRead += int64(len(data))
		return true
	}
	return false
}

func (r *Reader) closeFile() {
	r.buffer = nil
	r.offset = 0
	r.haveCurrent = false
}

func (r *Reader) passesTimeWindow(ts uint64) bool {
	if !r.opts.UseTimeWindow {
		return true
	}
	return ts >= r.opts.WindowStartNs && ts <= r.opts.WindowEndNs
}

// Next returns the next in-window, validated ExecEvent and its capture
// timestamp. It transparently skips corrupt/out-of-window records and
// advances across file boundaries, returning (ev, ts, ReadOk) on success.
// When exhausted it returns the status of the last skipped or truncated
// record (ReadTruncated, ReadInvalidLength or ReadChecksumMismatch), or
// ReadEndOfStream if there was none; ReadIOError if a file cannot be opened.
func (r *Reader) Next() (execevent.ExecEvent, uint64, ReadStatus) {
	lastErr := ReadEndOfStream
	for {
		if !r.haveCurrent {
			if r.fileIndex >= len(r.files) {
				return execevent.ExecEvent{}, 0, lastErr
			}
			if !r.openCurrentFile() {
				return execevent.ExecEvent{}, 0, ReadIOError
			}
		}
		if r.offset == len(r.buffer) {
			r.fileIndex++
			r.closeFile()
			continue
		}

		view, consumed, ok := ParseRecord(r.buffer[r.offset:])
		if !ok {
			r.stats.TruncatedTail++
			r.fileIndex++
			r.closeFile()
			lastErr = ReadTruncated
			continue
		}
		r.offset += consumed

		if len(view.Payload) != ExecEventPayloadSize {
			r.stats.BadLength++
			r.stats.RecordsCorrupt++
			lastErr = ReadInvalidLength
			continue
		}
		if !ValidateRecord(view) {
			r.stats.ChecksumFailures++
			r.stats.RecordsCorrupt++
			lastErr = ReadChecksumMismatch
			continue
		}

		ev, err := DecodeExecEvent(view.Payload)
		if err != nil {
			r.stats.BadLength++
			r.stats.RecordsCorrupt++
			lastErr = ReadInvalidLength
			continue
		}

		if !r.passesTimeWindow(view.CaptureTsNanos) {
			r.stats.FilteredOut++
			continue
		}

		r.stats.RecordsOK++
		return ev, view.CaptureTsNanos, ReadOk
	}
}

// Close releases the reader's buffered file contents.
func (r *Reader) Close() { r.closeFile() }
