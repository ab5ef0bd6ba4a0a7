package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/txn"
)

// lockEntry is the state for one record's write lock: who holds it (0 =
// free) and a channel that is closed and replaced every time the holder
// releases, waking anyone parked in acquire.
type lockEntry struct {
	mu      sync.Mutex
	holder  txn.ID
	release chan struct{}
}

func newLockEntry() *lockEntry {
	return &lockEntry{release: make(chan struct{})}
}

// acquire blocks until self holds the lock, the deadline passes, or the
// holder is wounded and releases. wound is invoked (at most once per
// distinct holder observed) whenever self is older than the current
// holder, per wound-wait: an older transaction never waits for a younger
// one — it wounds it instead.
func (e *lockEntry) acquire(self txn.ID, wound func(txn.ID), deadline time.Time) error {
	wounded := make(map[txn.ID]bool)
	for {
		e.mu.Lock()
		if e.holder == 0 || e.holder == self {
			e.holder = self
			e.mu.Unlock()
			return nil
		}
		holder := e.holder
		ch := e.release
		e.mu.Unlock()

		if self < holder && !wounded[holder] {
			wounded[holder] = true
			wound(holder)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errs.ErrLockTimeout
		}
		select {
		case <-ch:
			// released (or wounded and released); loop and retry.
		case <-time.After(remaining):
			return errs.ErrLockTimeout
		}
	}
}

func (e *lockEntry) releaseIfHeldBy(self txn.ID) {
	e.mu.Lock()
	if e.holder == self {
		e.holder = 0
		close(e.release)
		e.release = make(chan struct{})
	}
	e.mu.Unlock()
}

const lockShardCount = 64

// LockManager is a shard-striped map from Gid to lock holder, implementing
// wound-wait deadlock avoidance: on conflict the older transaction wounds
// (aborts) the younger rather than either party waiting indefinitely.
type LockManager struct {
	shards      [lockShardCount]struct {
		mu      sync.Mutex
		entries map[gid.Gid]*lockEntry
	}
	timeout time.Duration
	log     zerolog.Logger
	metrics *Metrics

	heldMu sync.Mutex
	held   map[txn.ID]map[gid.Gid]struct{}
}

// NewLockManager creates a lock manager whose Acquire calls fail with
// ErrLockTimeout after timeout.
func NewLockManager(timeout time.Duration, log zerolog.Logger, metrics *Metrics) *LockManager {
	lm := &LockManager{
		timeout: timeout,
		log:     log,
		metrics: metrics,
		held:    make(map[txn.ID]map[gid.Gid]struct{}),
	}
	for i := range lm.shards {
		lm.shards[i].entries = make(map[gid.Gid]*lockEntry)
	}
	return lm
}

func (lm *LockManager) shard(g gid.Gid) *struct {
	mu      sync.Mutex
	entries map[gid.Gid]*lockEntry
} {
	return &lm.shards[uint64(g)%lockShardCount]
}

func (lm *LockManager) entry(g gid.Gid) *lockEntry {
	s := lm.shard(g)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[g]
	if !ok {
		e = newLockEntry()
		s.entries[g] = e
	}
	return e
}

// Acquire blocks self until it holds the write lock on g, wounding younger
// holders as needed. wound is called with the id of any transaction that
// must abort to let self (an older transaction) proceed.
func (lm *LockManager) Acquire(self txn.ID, g gid.Gid, wound func(txn.ID)) error {
	start := time.Now()
	err := lm.entry(g).acquire(self, wound, start.Add(lm.timeout))
	if lm.metrics != nil {
		lm.metrics.ObserveLockWait(time.Since(start), err == nil)
	}
	if err != nil {
		lm.log.Warn().Uint64("txn", uint64(self)).Str("gid", g.String()).Msg("lock timeout")
		return err
	}
	lm.track(self, g)
	return nil
}

func (lm *LockManager) track(self txn.ID, g gid.Gid) {
	lm.heldMu.Lock()
	defer lm.heldMu.Unlock()
	set, ok := lm.held[self]
	if !ok {
		set = make(map[gid.Gid]struct{})
		lm.held[self] = set
	}
	set[g] = struct{}{}
}

// ReleaseAll releases every lock self currently holds, e.g. at transaction
// end (commit, abort, or having been wounded).
func (lm *LockManager) ReleaseAll(self txn.ID) {
	lm.heldMu.Lock()
	set := lm.held[self]
	delete(lm.held, self)
	lm.heldMu.Unlock()

	for g := range set {
		lm.entry(g).releaseIfHeldBy(self)
	}
}
