package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func TestWriteAndLoadRoundTrip(t *testing.T) {
	s, err := Open("", logx.Nop())
	require.NoError(t, err)
	defer s.Close()

	vAddr := gid.Address{Worker: 1, Gid: gid.New(1, 1)}
	eAddr := gid.Address{Worker: 1, Gid: gid.New(1, 100)}
	toAddr := gid.Address{Worker: 1, Gid: gid.New(1, 2)}

	vertices := []VertexRow{{Addr: vAddr, Labels: []string{"Person"}, Properties: map[string]value.TypedValue{"age": value.IntValue(30)}}}
	edges := []EdgeRow{{Addr: eAddr, From: vAddr, To: toAddr, Type: "KNOWS"}}

	require.NoError(t, s.WriteSnapshot(42, vertices, edges))

	txID, gotV, gotE, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), txID)
	require.Len(t, gotV, 1)
	require.Equal(t, vAddr, gotV[0].Addr)
	require.Len(t, gotE, 1)
	require.Equal(t, toAddr, gotE[0].To)
}

func TestLoadWithNoSnapshotReturnsNotOK(t *testing.T) {
	s, err := Open("", logx.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, _, _, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)
}
