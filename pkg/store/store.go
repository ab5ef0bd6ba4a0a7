// Package store implements the MVCC record store: versioned access to
// vertex/edge records keyed by Gid, enforced write locking with wound-wait
// deadlock avoidance, and background garbage collection of versions no
// transaction can see anymore.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/txn"
)

// Accessor is a transaction-bound handle to one record, returned by
// Find/Insert and threaded through Update/Remove/Reconstruct. It pins the
// Gid and the version that t currently sees; callers read Accessor.Data()
// and write through Update.
type Accessor[T any] struct {
	Gid     gid.Gid
	t       *txn.Transaction
	record  *Record[T]
	version *Version[T]
}

// Data returns the payload of the version this accessor currently sees.
func (a *Accessor[T]) Data() T {
	return a.version.Data
}

// Deleted reports whether the visible version is a tombstone.
func (a *Accessor[T]) Deleted() bool {
	return a.version.Tombstone
}

// Store is the MVCC record store for one record type (Vertex or Edge).
type Store[T any] struct {
	mu      sync.RWMutex
	records map[gid.Gid]*Record[T]

	engine  *txn.Engine
	locks   *LockManager
	log     zerolog.Logger
	metrics *Metrics
}

// New creates an empty store bound to engine for visibility decisions and
// locks for write serialization.
func New[T any](engine *txn.Engine, locks *LockManager, log zerolog.Logger, metrics *Metrics) *Store[T] {
	return &Store[T]{
		records: make(map[gid.Gid]*Record[T]),
		engine:  engine,
		locks:   locks,
		log:     log,
		metrics: metrics,
	}
}

// wound aborts the transaction identified by victim and releases every
// lock it holds, which is what lets an older transaction's Acquire
// unblock promptly instead of waiting out the full timeout.
func (s *Store[T]) wound(victim txn.ID) {
	if t, ok := s.engine.Lookup(victim); ok {
		s.engine.Abort(t)
	}
	s.locks.ReleaseAll(victim)
	s.log.Info().Uint64("txn", uint64(victim)).Msg("wounded by older transaction")
}

// Find returns an accessor bound to t and the version of gid visible to
// it. Fails with ErrNotFound when no visible version exists.
func (s *Store[T]) Find(t *txn.Transaction, g gid.Gid) (*Accessor[T], error) {
	s.mu.RLock()
	rec, ok := s.records[g]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}

	v := visibleVersion(rec, s.engine, t.Snapshot, t.ID)
	if v == nil || v.Tombstone {
		return nil, errs.ErrNotFound
	}
	return &Accessor[T]{Gid: g, t: t, record: rec, version: v}, nil
}

// Insert allocates g as a new record's identity with an initial version
// owned by t.
func (s *Store[T]) Insert(t *txn.Transaction, g gid.Gid, initial T) *Accessor[T] {
	rec := newRecord(initial, t.ID)
	s.mu.Lock()
	s.records[g] = rec
	s.mu.Unlock()
	return &Accessor[T]{Gid: g, t: t, record: rec, version: rec.head}
}

// Update acquires t's write lock on the record, validates that the
// accessor's version is still the current one t may write, and links a
// new version (the caller-supplied mutator applied to the visible data,
// which Update passes as is without copying it) as the new head. It returns the new accessor positioned on
// the freshly linked version.
func (s *Store[T]) Update(a *Accessor[T], mutate func(T) T) (*Accessor[T], error) {
	return s.write(a, mutate, false)
}

// Remove behaves like Update but marks the new head as a tombstone.
func (s *Store[T]) Remove(a *Accessor[T]) (*Accessor[T], error) {
	return s.write(a, func(v T) T { return v }, true)
}

func (s *Store[T]) write(a *Accessor[T], mutate func(T) T, tombstone bool) (*Accessor[T], error) {
	if err := s.locks.Acquire(a.t.ID, a.Gid, s.wound); err != nil {
		return nil, err
	}

	if a.t.Status() == txn.Aborted {
		return nil, errs.ErrSerialization
	}

	// With the write lock held, no other transaction can be concurrently
	// writing this record; the only reason the live base could differ
	// from the version this accessor was holding is that a committed
	// writer raced ahead of us between Find and Update.
	base := resolveWriteBase(a.record, s.engine, a.t.ID)
	if base == nil || base != a.version {
		return nil, errs.ErrSerialization
	}
	if base.Tombstone {
		return nil, errs.ErrRecordDeleted
	}

	next := &Version[T]{
		Data:       mutate(base.Data),
		TxInserted: a.t.ID,
		Tombstone:  tombstone,
		Next:       base,
	}
	base.TxExpired = a.t.ID
	a.record.head = next

	return &Accessor[T]{Gid: a.Gid, t: a.t, record: a.record, version: next}, nil
}

// resolveWriteBase returns the newest version of rec that is either self's
// own write or a committed write, skipping over any version whose insert
// was aborted (a void write that never should have counted).
func resolveWriteBase[T any](rec *Record[T], e *txn.Engine, self txn.ID) *Version[T] {
	for v := rec.head; v != nil; v = v.Next {
		if v.TxInserted == self || e.IsCommitted(v.TxInserted) {
			return v
		}
	}
	return nil
}

// Reconstruct re-resolves the version of a's record currently visible to
// its transaction, for use after yielding and reacquiring (e.g. across a
// Pull boundary in the executor).
func (s *Store[T]) Reconstruct(a *Accessor[T]) (*Accessor[T], error) {
	v := visibleVersion(a.record, s.engine, a.t.Snapshot, a.t.ID)
	if v == nil || v.Tombstone {
		return nil, errs.ErrNotFound
	}
	return &Accessor[T]{Gid: a.Gid, t: a.t, record: a.record, version: v}, nil
}

// ReleaseLocks releases every write lock the given transaction holds
// across this store. Called at commit/abort.
func (s *Store[T]) ReleaseLocks(t *txn.Transaction) {
	s.locks.ReleaseAll(t.ID)
}

// Count returns the number of live (non-deleted, per the calling
// transaction's snapshot) records.
func (s *Store[T]) Count(t *txn.Transaction) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rec := range s.records {
		if v := visibleVersion(rec, s.engine, t.Snapshot, t.ID); v != nil && !v.Tombstone {
			n++
		}
	}
	return n
}

// All returns an accessor for every record whose visible version (to t)
// is live; records whose visible version is a tombstone are skipped. Used
// by the executor's ScanAll.
func (s *Store[T]) All(t *txn.Transaction) []*Accessor[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Accessor[T], 0, len(s.records))
	for g, rec := range s.records {
		v := visibleVersion(rec, s.engine, t.Snapshot, t.ID)
		if v == nil || v.Tombstone {
			continue
		}
		out = append(out, &Accessor[T]{Gid: g, t: t, record: rec, version: v})
	}
	return out
}

// GC unlinks every version whose expiring transaction committed before
// oldest, the watermark returned by txn.Engine.OldestActive. No version
// visible to any active transaction is ever freed because oldest is
// exactly the smallest id that could still be reading.
func (s *Store[T]) GC(oldest txn.ID) (reclaimed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for g, rec := range s.records {
		reclaimed += gcChain(rec, s.engine, oldest)
		// A record whose only version is a long-reclaimed tombstone with
		// no more history can be dropped entirely.
		if rec.head == nil {
			delete(s.records, g)
		}
	}
	if s.metrics != nil && reclaimed > 0 {
		s.metrics.GCReclaimedVersions.Add(float64(reclaimed))
	}
	if s.metrics != nil {
		s.metrics.GCSweeps.Inc()
	}
	return reclaimed
}

func gcChain[T any](rec *Record[T], e *txn.Engine, oldest txn.ID) int {
	reclaimed := 0
	// Walk from head, keeping every version until we find one that is
	// both expired and committed strictly before oldest; that version and
	// everything past it is unlinked. The head itself is never unlinked
	// here, only its history.
	var prev *Version[T]
	for v := rec.head; v != nil; {
		cut := v.TxExpired != 0 && e.IsCommitted(v.TxExpired) && v.TxExpired < oldest
		if cut {
			start := v
			if prev == nil {
				start = v.Next
				v.Next = nil
			} else {
				prev.Next = nil
			}
			for n := start; n != nil; {
				next := n.Next
				n.Next = nil
				reclaimed++
				n = next
			}
			break
		}
		prev = v
		v = v.Next
	}
	if rec.head != nil && rec.head.Tombstone && rec.head.Next == nil &&
		rec.head.TxExpired != 0 && e.IsCommitted(rec.head.TxExpired) && rec.head.TxExpired < oldest {
		rec.head = nil
		reclaimed++
	}
	return reclaimed
}

// GCLoop runs GC on a ticker until stop is closed, the shape the
// background garbage-collection thread spec.md §5 calls for.
func (s *Store[T]) GCLoop(interval time.Duration, oldest func() txn.ID, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n := s.GC(oldest())
			if n > 0 {
				s.log.Debug().Int("reclaimed", n).Msg("gc sweep")
			}
		case <-stop:
			return
		}
	}
}
