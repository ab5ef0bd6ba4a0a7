package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginAssignsIncreasingIDs(t *testing.T) {
	e := New(0, nopLog())
	a := e.Begin()
	b := e.Begin()
	require.Less(t, a.ID, b.ID)
}

func TestSnapshotExcludesSelf(t *testing.T) {
	e := New(0, nopLog())
	a := e.Begin()
	assert.False(t, a.Snapshot.Contains(a.ID))
}

func TestSnapshotIsolation(t *testing.T) {
	// Tx A begins before Tx B commits a new vertex; A's snapshot must not
	// consider B's insert visible even after B commits.
	e := New(0, nopLog())
	a := e.Begin()
	b := e.Begin()
	e.Commit(b)

	assert.True(t, Visible(e, a.Snapshot, a.ID, b.ID, 0) == false)
	assert.True(t, Visible(e, b.Snapshot, b.ID, b.ID, 0))
}

func TestOldestActive(t *testing.T) {
	e := New(0, nopLog())
	a := e.Begin()
	pending := e.Begin()
	e.Commit(a)
	_ = e.Begin()

	assert.Equal(t, pending.ID, e.OldestActive())
}

func TestVisibleOwnWrites(t *testing.T) {
	e := New(0, nopLog())
	a := e.Begin()
	assert.True(t, Visible(e, a.Snapshot, a.ID, a.ID, 0))
}

func TestVisibleExpiredByActiveIsStillVisible(t *testing.T) {
	e := New(0, nopLog())
	writer := e.Begin()
	e.Commit(writer)

	reader := e.Begin()
	expirer := e.Begin() // active, not yet committed

	assert.True(t, Visible(e, reader.Snapshot, reader.ID, writer.ID, expirer.ID))
}

func TestVisibleExpiredByCommittedNotInSnapshotIsHidden(t *testing.T) {
	e := New(0, nopLog())
	writer := e.Begin()
	e.Commit(writer)

	expirer := e.Begin()
	e.Commit(expirer)

	reader := e.Begin()
	assert.False(t, Visible(e, reader.Snapshot, reader.ID, writer.ID, expirer.ID))
}
