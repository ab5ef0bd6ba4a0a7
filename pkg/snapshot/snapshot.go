// Package snapshot persists periodic point-in-time copies of the graph to
// an embedded badger/v4 store, so recovery can start from snapshot-<tx_id>
// plus the WAL tail instead of replaying from the very first transaction.
// Rows reuse the StateDelta codec (a CREATE_VERTEX/CREATE_EDGE delta is
// already exactly "one row of the graph"), so the snapshot format and the
// WAL format never drift apart.
package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

var metaKey = []byte("meta:latest_tx_id")

const (
	vertexPrefix = "v:"
	edgePrefix   = "e:"
)

// Store wraps one badger database holding the most recent snapshot. Only
// the latest snapshot is kept; a new WriteSnapshot replaces it wholesale,
// since the WAL segment retained alongside it is what lets recovery catch
// up to the present.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the snapshot database at dir. Pass "" for an
// in-memory store, useful in tests.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying badger database.
func (s *Store) Close() error { return s.db.Close() }

// VertexRow is one vertex as persisted in a snapshot.
type VertexRow struct {
	Addr       gid.Address
	Labels     []string
	Properties map[string]value.TypedValue
}

// EdgeRow is one edge as persisted in a snapshot.
type EdgeRow struct {
	Addr       gid.Address
	From, To   gid.Address
	Type       string
	Properties map[string]value.TypedValue
}

// WriteSnapshot atomically replaces the stored snapshot with the given
// vertex and edge rows, recorded as having been taken as of txID.
func (s *Store) WriteSnapshot(txID uint64, vertices []VertexRow, edges []EdgeRow) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	if err := s.clear(wb); err != nil {
		return err
	}
	for _, v := range vertices {
		d := delta.StateDelta{Tag: delta.CreateVertex, Vertex: v.Addr, Labels: v.Labels, Properties: v.Properties}
		if err := wb.Set(vertexKey(v.Addr), delta.Encode(d)); err != nil {
			return fmt.Errorf("snapshot: write vertex: %w", err)
		}
	}
	for _, e := range edges {
		ref := delta.EdgeRef{Edge: e.Addr, Other: e.To, Type: e.Type}
		d := delta.StateDelta{Tag: delta.CreateEdge, Edge: e.Addr, EdgeEndpoints: ref, Properties: e.Properties}
		d.Vertex = e.From // borrow Vertex to carry "from" since EdgeRef only names "other" (=To)
		if err := wb.Set(edgeKey(e.Addr), delta.Encode(d)); err != nil {
			return fmt.Errorf("snapshot: write edge: %w", err)
		}
	}

	var txBuf [8]byte
	binary.BigEndian.PutUint64(txBuf[:], txID)
	if err := wb.Set(metaKey, txBuf[:]); err != nil {
		return fmt.Errorf("snapshot: write meta: %w", err)
	}
	return wb.Flush()
}

// clear drops every vertex/edge row from a prior snapshot before the new
// one is written; WriteBatch buffers these deletes along with the new
// Sets so the whole replacement is one atomic flush.
func (s *Store) clear(wb *badger.WriteBatch) error {
	return s.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{vertexPrefix, edgePrefix} {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				key := it.Item().KeyCopy(nil)
				if err := wb.Delete(key); err != nil {
					it.Close()
					return err
				}
			}
			it.Close()
		}
		return nil
	})
}

// Load reads the latest snapshot back out, if one exists. ok is false when
// no snapshot has ever been written.
func (s *Store) Load() (txID uint64, vertices []VertexRow, edges []EdgeRow, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		metaItem, metaErr := txn.Get(metaKey)
		if metaErr == badger.ErrKeyNotFound {
			return nil
		}
		if metaErr != nil {
			return metaErr
		}
		ok = true
		if copyErr := metaItem.Value(func(val []byte) error {
			txID = binary.BigEndian.Uint64(val)
			return nil
		}); copyErr != nil {
			return copyErr
		}

		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(vertexPrefix)})
		for it.Seek([]byte(vertexPrefix)); it.ValidForPrefix([]byte(vertexPrefix)); it.Next() {
			item := it.Item()
			derr := item.Value(func(val []byte) error {
				d, decErr := delta.Decode(val)
				if decErr != nil {
					return decErr
				}
				vertices = append(vertices, VertexRow{Addr: d.Vertex, Labels: d.Labels, Properties: d.Properties})
				return nil
			})
			if derr != nil {
				it.Close()
				return derr
			}
		}
		it.Close()

		it = txn.NewIterator(badger.IteratorOptions{Prefix: []byte(edgePrefix)})
		for it.Seek([]byte(edgePrefix)); it.ValidForPrefix([]byte(edgePrefix)); it.Next() {
			item := it.Item()
			derr := item.Value(func(val []byte) error {
				d, decErr := delta.Decode(val)
				if decErr != nil {
					return decErr
				}
				edges = append(edges, EdgeRow{
					Addr:       d.Edge,
					From:       d.Vertex,
					To:         d.EdgeEndpoints.Other,
					Type:       d.EdgeEndpoints.Type,
					Properties: d.Properties,
				})
				return nil
			})
			if derr != nil {
				it.Close()
				return derr
			}
		}
		it.Close()
		return nil
	})
	return txID, vertices, edges, ok, err
}

func vertexKey(addr gid.Address) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", vertexPrefix, addr.Worker, addr.Gid))
}

func edgeKey(addr gid.Address) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", edgePrefix, addr.Worker, addr.Gid))
}
