package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/txn"
)

func newTestStore() (*Store[string], *txn.Engine) {
	engine := txn.New(0, logx.Nop())
	locks := NewLockManager(200*time.Millisecond, logx.Nop(), nil)
	return New[string](engine, locks, logx.Nop(), nil), engine
}

func TestSnapshotIsolationHidesLaterInsert(t *testing.T) {
	s, engine := newTestStore()

	a := engine.Begin()
	b := engine.Begin()

	g := gid.New(1, 1)
	s.Insert(b, g, "v")
	engine.Commit(b)

	_, err := s.Find(a, g)
	require.ErrorIs(t, err, errs.ErrNotFound)

	acc, err := s.Find(b, g)
	require.NoError(t, err)
	require.Equal(t, "v", acc.Data())
}

func TestWriteWriteConflictAborts(t *testing.T) {
	s, engine := newTestStore()

	seed := engine.Begin()
	g := gid.New(1, 1)
	s.Insert(seed, g, "initial")
	engine.Commit(seed)

	a := engine.Begin()
	b := engine.Begin()

	accA, err := s.Find(a, g)
	require.NoError(t, err)
	accB, err := s.Find(b, g)
	require.NoError(t, err)

	newA, err := s.Update(accA, func(string) string { return "from-a" })
	require.NoError(t, err)
	engine.Commit(a)

	_, err = s.Update(accB, func(string) string { return "from-b" })
	require.Error(t, err)
	require.True(t, errs.Abortable(err))
	engine.Abort(b)

	winner := engine.Begin()
	final, err := s.Find(winner, g)
	require.NoError(t, err)
	require.Equal(t, "from-a", final.Data())
	require.Equal(t, "from-a", newA.Data())
}

func TestUpdateThenRemoveTombstones(t *testing.T) {
	s, engine := newTestStore()
	t1 := engine.Begin()
	g := gid.New(1, 2)
	acc := s.Insert(t1, g, "x")
	removed, err := s.Remove(acc)
	require.NoError(t, err)
	require.True(t, removed.Deleted())
	engine.Commit(t1)

	t2 := engine.Begin()
	_, err = s.Find(t2, g)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGCReclaimsSupersededVersions(t *testing.T) {
	s, engine := newTestStore()
	g := gid.New(1, 3)

	t1 := engine.Begin()
	acc := s.Insert(t1, g, "v1")
	engine.Commit(t1)

	t2 := engine.Begin()
	acc2, err := s.Find(t2, g)
	require.NoError(t, err)
	_, err = s.Update(acc2, func(string) string { return "v2" })
	require.NoError(t, err)
	engine.Commit(t2)

	// Nothing active anymore, so oldest == GlobalLast()+1: every expired
	// version should be reclaimable.
	n := s.GC(engine.OldestActive())
	require.GreaterOrEqual(t, n, 1)
	_ = acc
}

func TestWoundAbortsYoungerHolder(t *testing.T) {
	s, engine := newTestStore()
	g := gid.New(1, 4)

	seed := engine.Begin()
	s.Insert(seed, g, "v")
	engine.Commit(seed)

	older := engine.Begin()
	younger := engine.Begin()

	accYounger, err := s.Find(younger, g)
	require.NoError(t, err)
	_, err = s.Update(accYounger, func(string) string { return "younger" })
	require.NoError(t, err)

	accOlder, err := s.Find(older, g)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Update(accOlder, func(string) string { return "older" })
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("older transaction should have wounded the younger holder and proceeded")
	}
	require.Equal(t, txn.Aborted, younger.Status())
}
