// Package wal provides write-ahead logging for memgraph durability.
//
// Every StateDelta, the same tagged-union that crosses the distributed
// coordinator's RPC boundary, is also the unit the WAL persists. Appends
// are length-prefixed binary records followed by a running xxhash trailer,
// so a reader can detect a torn write at the tail of the file without
// rehashing the whole log from scratch. Commits and aborts force a
// synchronous flush+fsync before the caller's transaction is acknowledged;
// everything else may ride the OS write-behind cache until the next commit.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/errs"
)

// recordLengthSize is the width of the length prefix. trailerSize is the
// width of the cumulative hash trailer that follows every record's payload.
const (
	recordLengthSize = 4
	trailerSize      = 8
)

// WAL is a single append-only log file plus the bookkeeping needed to
// rotate it once a transaction boundary is known.
type WAL struct {
	mu     sync.Mutex
	dir    string
	file   *os.File
	writer *bufio.Writer
	hasher *xxhash.Digest
	log    zerolog.Logger
}

// Open opens (or creates) the WAL directory and starts a fresh segment
// file. Segments are named wal-<latest_tx_id>.bin once Rotate is called;
// the initial segment is wal-0.bin until the first rotation.
func Open(dir string, log zerolog.Logger) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}
	w := &WAL{dir: dir, log: log}
	if err := w.openSegment(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) openSegment(latestTxID uint64) error {
	path := filepath.Join(w.dir, segmentName(latestTxID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 64*1024)
	w.hasher = xxhash.New()
	return nil
}

func segmentName(latestTxID uint64) string {
	return fmt.Sprintf("wal-%d.bin", latestTxID)
}

// Emplace appends d to the log. Transaction-end deltas (commit/abort) are
// flushed and fsynced before Emplace returns, giving the caller
// synchronous-commit durability; every other delta is buffered.
func (w *WAL) Emplace(d delta.StateDelta) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload := delta.Encode(d)
	if err := w.writeRecordLocked(payload); err != nil {
		return err
	}
	if d.IsTransactionEnd() {
		if err := w.flushLocked(); err != nil {
			return errs.ErrWalWriteFailure
		}
	}
	return nil
}

func (w *WAL) writeRecordLocked(payload []byte) error {
	var length [recordLengthSize]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := w.writer.Write(length[:]); err != nil {
		return errs.ErrWalWriteFailure
	}
	if _, err := w.writer.Write(payload); err != nil {
		return errs.ErrWalWriteFailure
	}
	w.hasher.Write(payload)
	var trailer [trailerSize]byte
	binary.BigEndian.PutUint64(trailer[:], w.hasher.Sum64())
	if _, err := w.writer.Write(trailer[:]); err != nil {
		return errs.ErrWalWriteFailure
	}
	return nil
}

func (w *WAL) flushLocked() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Flush forces any buffered, non-transaction-end records to disk. Callers
// rarely need this directly since Emplace already flushes at commit/abort
// boundaries, but it is useful before Rotate or Close.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Rotate closes the current segment and opens a new one named for the
// latest committed transaction id, matching the wal-<latest_tx_id>.bin
// naming convention.
func (w *WAL) Rotate(latestTxID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openSegment(latestTxID)
}

// Close flushes and closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		w.log.Warn().Err(err).Msg("wal: flush on close failed")
	}
	return w.file.Close()
}

// readRecord reads one length-prefixed record and its trailer from r,
// verifying the trailer against a running hasher shared across the whole
// segment. io.EOF on the length prefix is a clean end of file; any other
// failure (short read, length overrunning the file, trailer mismatch)
// means the tail is torn and replay must stop before this record.
func readRecord(r io.Reader, hasher *xxhash.Digest) ([]byte, bool, error) {
	var length [recordLengthSize]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, nil
	}
	n := binary.BigEndian.Uint32(length[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, nil
	}
	var trailer [trailerSize]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, false, nil
	}
	hasher.Write(payload)
	if binary.BigEndian.Uint64(trailer[:]) != hasher.Sum64() {
		return nil, false, nil
	}
	return payload, true, nil
}
