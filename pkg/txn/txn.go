// Package txn implements the transaction engine: it hands out monotonically
// increasing transaction ids, tracks which are active, committed, or
// aborted, and produces the snapshots that give the MVCC store its
// visibility rule.
package txn

import (
	"sync"

	"github.com/rs/zerolog"
)

// ID is a transaction identifier. Ids are assigned in strictly increasing
// order starting at 1; 0 is never a valid transaction id and is used as the
// "no writer" / "not expired" sentinel in record versions.
type ID uint64

// Status is the lifecycle state of a transaction.
type Status int

const (
	Active Status = iota
	Committed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Snapshot is the set of transaction ids that were active when a
// transaction began. A version is visible to a transaction holding this
// snapshot iff its inserting transaction is committed and not a member of
// this set, per Visible below.
type Snapshot struct {
	active map[ID]struct{}
	// asOf is the id of the snapshot-taking transaction itself; ids
	// greater than asOf that are not in active are by definition not yet
	// started and can never be visible.
	asOf ID
}

// Contains reports whether id was active (therefore not yet committed) as
// of this snapshot.
func (s Snapshot) Contains(id ID) bool {
	_, ok := s.active[id]
	return ok
}

// Transaction is a single unit of work: an id, the snapshot it reads
// through, and its current status.
type Transaction struct {
	ID       ID
	Snapshot Snapshot
	mu       sync.Mutex
	status   Status
}

// Status returns the transaction's current lifecycle state.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Engine issues transaction ids, tracks which are active/committed/
// aborted, and produces snapshots. All operations are safe for concurrent
// use; Snapshot reads never block a writer and vice versa beyond a single
// short-held mutex, matching spec's "wait-free" intent closely enough for
// a single-process engine (the mutex is never held across I/O).
type Engine struct {
	mu        sync.RWMutex
	nextID    ID
	active    map[ID]*Transaction
	committed map[ID]struct{}
	aborted   map[ID]struct{}
	log       zerolog.Logger
}

// New creates an empty transaction engine. lastID is the highest
// transaction id known to have been issued before a restart (0 on a fresh
// database), so ids keep increasing across recoveries.
func New(lastID ID, log zerolog.Logger) *Engine {
	return &Engine{
		nextID:    lastID + 1,
		active:    make(map[ID]*Transaction),
		committed: make(map[ID]struct{}),
		aborted:   make(map[ID]struct{}),
		log:       log,
	}
}

// Begin allocates the next transaction id, captures a snapshot of the
// currently active set (excluding the new id itself), and registers the
// transaction as active.
func (e *Engine) Begin() *Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++

	active := make(map[ID]struct{}, len(e.active))
	for other := range e.active {
		active[other] = struct{}{}
	}

	t := &Transaction{
		ID:       id,
		Snapshot: Snapshot{active: active, asOf: id},
		status:   Active,
	}
	e.active[id] = t
	e.log.Debug().Uint64("txn", uint64(id)).Int("snapshot_size", len(active)).Msg("begin")
	return t
}

// Commit moves a transaction from active to committed.
func (e *Engine) Commit(t *Transaction) {
	e.mu.Lock()
	delete(e.active, t.ID)
	e.committed[t.ID] = struct{}{}
	e.mu.Unlock()

	t.mu.Lock()
	t.status = Committed
	t.mu.Unlock()
	e.log.Debug().Uint64("txn", uint64(t.ID)).Msg("commit")
}

// Abort moves a transaction from active to aborted.
func (e *Engine) Abort(t *Transaction) {
	e.mu.Lock()
	delete(e.active, t.ID)
	e.aborted[t.ID] = struct{}{}
	e.mu.Unlock()

	t.mu.Lock()
	t.status = Aborted
	t.mu.Unlock()
	e.log.Debug().Uint64("txn", uint64(t.ID)).Msg("abort")
}

// IsCommitted reports whether id refers to a transaction known to have
// committed.
func (e *Engine) IsCommitted(id ID) bool {
	if id == 0 {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.committed[id]
	return ok
}

// IsAborted reports whether id refers to a transaction known to have
// aborted.
func (e *Engine) IsAborted(id ID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.aborted[id]
	return ok
}

// Lookup returns the active Transaction for id, if any. Used by the lock
// manager's wound-wait path to abort a younger holder by id.
func (e *Engine) Lookup(id ID) (*Transaction, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.active[id]
	return t, ok
}

// IsActive reports whether id is currently active.
func (e *Engine) IsActive(id ID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.active[id]
	return ok
}

// Snapshot returns a fresh copy of the currently active id set without
// beginning a transaction. Used by background tasks (GC) that need the
// concept of "currently active" without participating as a transaction.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	active := make(map[ID]struct{}, len(e.active))
	for id := range e.active {
		active[id] = struct{}{}
	}
	return Snapshot{active: active, asOf: e.nextID}
}

// GlobalLast returns the most recently issued transaction id.
func (e *Engine) GlobalLast() ID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nextID - 1
}

// OldestActive returns min(active ∪ {last_committed_plus_one}): the oldest
// transaction id any version might still need to be visible to. Garbage
// collection uses this as its reclamation watermark.
func (e *Engine) OldestActive() ID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	oldest := e.nextID // last_committed + 1, since nextID is always one past the last issued id
	for id := range e.active {
		if id < oldest {
			oldest = id
		}
	}
	return oldest
}

// Visible reports whether a version inserted by txInserted and expired by
// txExpired (0 meaning "not expired") is visible to self, a reader holding
// the given snapshot, per spec's visibility rule:
//
//	visible iff tx_inserted is committed and not in the snapshot, and
//	tx_expired is zero, or still active, or aborted, or in the snapshot.
//
// A transaction always sees its own writes regardless of commit state, the
// usual read-your-writes exception to the rule above.
//
// A transaction with a higher id than self necessarily began after self
// took its snapshot, so it cannot be visible even once committed — ids are
// assigned strictly increasingly at Begin, so txInserted > self implies
// txInserted did not exist at self's Begin and was therefore never a
// candidate for "not in the snapshot" to make visible.
func Visible(e *Engine, snap Snapshot, self, txInserted, txExpired ID) bool {
	insertedVisible := txInserted == self ||
		(txInserted < self && e.IsCommitted(txInserted) && !snap.Contains(txInserted))
	if !insertedVisible {
		return false
	}
	if txExpired == 0 {
		return true
	}
	if txExpired == self {
		return false
	}
	if snap.Contains(txExpired) {
		return true
	}
	if e.IsActive(txExpired) || e.IsAborted(txExpired) {
		return true
	}
	return false
}
