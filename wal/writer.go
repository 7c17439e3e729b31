package wal

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

var debugLog = log.New(log.Writer(), "[wal] ", 0)

// OpenWriter opens directory for WAL segment files, creating it if needed,
// and starts a fresh append-only segment numbered after the highest existing
// one; LSNs restart at 1. Existing segments from a
// prior run are left on disk untouched but are not scanned for replay —
// recovery is out of scope; only the append/flush path is implemented.
func OpenWriter(directory string) (*Writer, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}

	w := &Writer{
		directory: directory,
		segments:  make(map[uint64]*segment),
		nextLSN:   1,
	}

	nextSegmentID, err := highestSegmentID(directory)
	if err != nil {
		return nil, err
	}

	seg := newSegment(nextSegmentID+1, directory)
	if err := seg.open(); err != nil {
		return nil, fmt.Errorf("wal: open segment: %w", err)
	}
	w.segments[seg.id] = seg
	w.current = seg
	return w, nil
}

func highestSegmentID(directory string) (uint64, error) {
	entries, err := filepath.Glob(filepath.Join(directory, "wal_*.log"))
	if err != nil {
		return 0, err
	}
	var maxID uint64
	found := false
	for _, path := range entries {
		var id uint64
		if _, err := fmt.Sscanf(filepath.Base(path), "wal_%x.log", &id); err != nil {
			continue
		}
		if !found || id > maxID {
			maxID = id
			found = true
		}
	}
	if !found {
		return 0, nil
	}
	return maxID, nil
}

// Append writes data as a new WAL record and returns its LSN. The record is
// buffered in the OS page cache; call Sync to make it durable and advance
// GetFlushedLSN.
func (w *Writer) Append(data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn := w.nextLSN
	w.nextLSN++

	rec := &record{lsn: lsn, data: data, crc: computeCRC(lsn, data)}
	if err := w.current.append(rec.encode()); err != nil {
		return 0, fmt.Errorf("wal: append: %w", err)
	}

	if w.current.size >= segmentSize {
		if err := w.rollSegment(); err != nil {
			return 0, err
		}
	}
	return lsn, nil
}

func (w *Writer) rollSegment() error {
	next := newSegment(w.current.id+1, w.directory)
	if err := next.open(); err != nil {
		return fmt.Errorf("wal: roll segment: %w", err)
	}
	w.segments[next.id] = next
	w.current = next
	debugLog.Printf("rolled to segment %d", next.id)
	return nil
}

// Sync fsyncs the active segment and advances the flushed-LSN watermark to
// the most recently appended record.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	w.flushedLSN = w.nextLSN - 1
	return nil
}

// GetFlushedLSN implements bufferpool.WALFlushedLSNGetter.
func (w *Writer) GetFlushedLSN() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.flushedLSN
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, seg := range w.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
