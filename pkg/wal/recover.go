package wal

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/arefrazavi/memgraph/pkg/delta"
)

// Recover replays every segment in dir, in ascending rotation order, and
// returns the committed deltas in the order they should be re-applied.
// Deltas belonging to a transaction with no TRANSACTION_COMMIT marker
// (aborted mid-flight, or cut off by a crash) are discarded, matching
// synchronous-commit semantics: nothing the client was told committed is
// ever lost, and nothing it wasn't is ever replayed.
func Recover(dir string) ([]delta.StateDelta, error) {
	segments, err := segmentsInOrder(dir)
	if err != nil {
		return nil, err
	}

	pending := make(map[uint64][]delta.StateDelta)
	var committed []delta.StateDelta

	for _, path := range segments {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		hasher := xxhash.New()
		for {
			payload, ok, err := readRecord(f, hasher)
			if err != nil || !ok {
				break
			}
			d, err := delta.Decode(payload)
			if err != nil {
				break
			}
			switch d.Tag {
			case delta.TransactionBegin:
				pending[d.TxID] = nil
			case delta.TransactionCommit:
				committed = append(committed, pending[d.TxID]...)
				delete(pending, d.TxID)
			case delta.TransactionAbort:
				delete(pending, d.TxID)
			default:
				pending[d.TxID] = append(pending[d.TxID], d)
			}
		}
		f.Close()
	}

	// Any transaction still pending at the end of every segment never saw
	// a commit marker and is discarded.
	return committed, nil
}

func segmentsInOrder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return segmentOrdinal(names[i]) < segmentOrdinal(names[j])
	})
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// segmentOrdinal extracts the latest_tx_id from a "wal-<id>.bin" filename
// so segments sort in rotation order rather than lexically (wal-10.bin
// must follow wal-2.bin, not precede it).
func segmentOrdinal(name string) uint64 {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "wal-"), ".bin")
	n, _ := strconv.ParseUint(trimmed, 10, 64)
	return n
}
