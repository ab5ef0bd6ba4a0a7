package store

import "github.com/arefrazavi/memgraph/pkg/txn"

// Version is one entry in a record's version chain.
type Version[T any] struct {
	Data       T
	TxInserted txn.ID
	TxExpired  txn.ID // 0 if live
	Tombstone  bool
	Next       *Version[T] // older version, or nil
}

// Record is the version list for a single logical vertex or edge, keyed
// externally by its Gid. Version chains are append-only: a new version is
// always linked in front of the old one, which is marked expired but never
// mutated, so a transaction that already holds a pointer to it keeps a
// stable view even while a writer proceeds.
type Record[T any] struct {
	head *Version[T] // newest version
}

func newRecord[T any](initial T, inserter txn.ID) *Record[T] {
	return &Record[T]{head: &Version[T]{Data: initial, TxInserted: inserter}}
}

// visibleVersion walks the chain from newest to oldest and returns the first
// version visible to (self, snap), or nil if none is.
func visibleVersion[T any](r *Record[T], e *txn.Engine, snap txn.Snapshot, self txn.ID) *Version[T] {
	for v := r.head; v != nil; v = v.Next {
		if txn.Visible(e, snap, self, v.TxInserted, v.TxExpired) {
			return v
		}
	}
	return nil
}
