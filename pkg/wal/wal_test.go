package wal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/logx"
)

func TestEmplaceAndRecoverDiscardsUncommitted(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, logx.Nop())
	require.NoError(t, err)

	addr := gid.Address{Worker: 1, Gid: gid.New(1, 1)}
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionBegin, TxID: 1}))
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.CreateVertex, TxID: 1, Vertex: addr, Labels: []string{"Person"}}))
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionCommit, TxID: 1}))

	// A second transaction that never commits must not appear on recovery.
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionBegin, TxID: 2}))
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.CreateVertex, TxID: 2, Vertex: gid.Address{Worker: 1, Gid: gid.New(1, 2)}}))
	require.NoError(t, w.Close())

	got, err := Recover(dir)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, delta.CreateVertex, got[0].Tag)
	require.Equal(t, addr, got[0].Vertex)
}

func TestRotateCreatesNewSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionBegin, TxID: 1}))
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionCommit, TxID: 1}))
	require.NoError(t, w.Rotate(1))
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionBegin, TxID: 2}))
	require.NoError(t, w.Emplace(delta.StateDelta{Tag: delta.TransactionCommit, TxID: 2}))
	require.NoError(t, w.Close())

	segments, err := segmentsInOrder(dir)
	require.NoError(t, err)
	require.Len(t, segments, 2)
}
