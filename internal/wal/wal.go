package wal

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ziXnOrg/ORCA/internal/logging"
)

// File is an append-only JSONL event log. A single *File owns its
// underlying *os.File handle; concurrent Append calls within a process
// serialize on mu (spec.md §3 Ownership: "concurrent appenders within a
// process serialize on the file handle").
//
// Readers (ReadRange) open an independent handle so that long scans
// never block appenders, matching spec.md §5's suspension-point model.
type File struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	w      *bufio.Writer
	logger *slog.Logger
}

// Open creates path if it doesn't exist and never truncates an existing
// file (spec.md §4.2 "open(path): creates if absent; never truncates").
func Open(path string, logger *slog.Logger) (*File, error) {
	logger = logging.Default(logger).With("component", "wal")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &File{
		path:   path,
		f:      f,
		w:      bufio.NewWriter(f),
		logger: logger,
	}, nil
}

// Path returns the log's file path.
func (wl *File) Path() string { return wl.path }

// Append writes one record and flushes before returning (spec.md §4.2:
// "flush before return"). It returns the id that was written, which is
// always the same id the caller supplied — the WAL does not allocate
// ids itself; identity.EventIDSequence does.
func (wl *File) Append(r Record) (uint64, error) {
	line, err := ToJSONLLine(r)
	if err != nil {
		return 0, err
	}
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if _, err := wl.w.Write(line); err != nil {
		return 0, fmt.Errorf("wal: write record %d: %w", r.ID, err)
	}
	if err := wl.w.Flush(); err != nil {
		return 0, fmt.Errorf("wal: flush record %d: %w", r.ID, err)
	}
	if err := wl.f.Sync(); err != nil {
		return 0, fmt.Errorf("wal: sync record %d: %w", r.ID, err)
	}
	return r.ID, nil
}

// Close flushes and closes the underlying file.
func (wl *File) Close() error {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if err := wl.w.Flush(); err != nil {
		return err
	}
	return wl.f.Close()
}

// ReadRange scans the whole file on an independent handle and returns
// records with start <= id < end, in append order (spec.md §4.2).
// A malformed line fails the call (spec.md §4.2 failure semantics).
func ReadRange(path string, start, end uint64) ([]Record, error) {
	var out []Record
	err := ForEach(path, func(r Record) error {
		if r.ID >= start && r.ID < end {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForEach scans path in append order, calling fn for every record. A
// malformed line or a non-nil fn error aborts the scan. Readers that
// want streaming behaviour (StreamEvents) should use this directly
// rather than ReadRange, which buffers the whole filtered result.
func ForEach(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("wal: open %s for read: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("wal: malformed line %d in %s: %w", lineNo, path, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("wal: scan %s: %w", path, err)
	}
	return nil
}
