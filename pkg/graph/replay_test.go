package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func newTestReplayer(t *testing.T) *Replayer {
	t.Helper()
	log := logx.Nop()
	txnEngine := txn.New(0, log)
	locks := store.NewLockManager(0, log, nil)
	return &Replayer{
		Self:      1,
		Vertices:  store.New[Vertex](txnEngine, locks, log, nil),
		Edges:     store.New[Edge](txnEngine, locks, log, nil),
		Schema:    index.NewSchema(),
		TxnEngine: txnEngine,
	}
}

func TestReplayerAppliesCreateVertex(t *testing.T) {
	r := newTestReplayer(t)
	addr := gid.Address{Worker: 1, Gid: gid.New(1, 1)}

	err := r.Apply(delta.StateDelta{
		Tag:        delta.CreateVertex,
		Vertex:     addr,
		Labels:     []string{"Person"},
		Properties: map[string]value.TypedValue{"name": value.StringValue("Ada")},
	})
	require.NoError(t, err)

	t1 := r.TxnEngine.Begin()
	defer r.TxnEngine.Commit(t1)
	acc, err := r.Vertices.Find(t1, addr.Gid)
	require.NoError(t, err)
	require.Equal(t, []string{"Person"}, acc.Data().Labels)
	require.Equal(t, value.StringValue("Ada"), acc.Data().Properties["name"])
	require.ElementsMatch(t, []gid.Gid{addr.Gid}, r.Schema.Labels().Lookup("Person"))
}

func TestReplayerAppliesCreateEdgeAndLinks(t *testing.T) {
	r := newTestReplayer(t)
	from := gid.Address{Worker: 1, Gid: gid.New(1, 1)}
	to := gid.Address{Worker: 1, Gid: gid.New(1, 2)}
	edgeAddr := gid.Address{Worker: 1, Gid: gid.New(1, 3)}

	require.NoError(t, r.Apply(delta.StateDelta{Tag: delta.CreateVertex, Vertex: from, Labels: []string{"Person"}}))
	require.NoError(t, r.Apply(delta.StateDelta{Tag: delta.CreateVertex, Vertex: to, Labels: []string{"Person"}}))
	require.NoError(t, r.Apply(delta.StateDelta{
		Tag:           delta.CreateEdge,
		Vertex:        from,
		Edge:          edgeAddr,
		EdgeEndpoints: delta.EdgeRef{Edge: edgeAddr, Other: to, Type: "KNOWS"},
	}))
	require.NoError(t, r.Apply(delta.StateDelta{
		Tag:           delta.AddOutEdge,
		Vertex:        from,
		EdgeEndpoints: delta.EdgeRef{Edge: edgeAddr, Other: to, Type: "KNOWS"},
	}))
	require.NoError(t, r.Apply(delta.StateDelta{
		Tag:           delta.AddInEdge,
		Vertex:        to,
		EdgeEndpoints: delta.EdgeRef{Edge: edgeAddr, Other: from, Type: "KNOWS"},
	}))

	t1 := r.TxnEngine.Begin()
	defer r.TxnEngine.Commit(t1)
	eacc, err := r.Edges.Find(t1, edgeAddr.Gid)
	require.NoError(t, err)
	require.Equal(t, from, eacc.Data().From)
	require.Equal(t, to, eacc.Data().To)

	facc, err := r.Vertices.Find(t1, from.Gid)
	require.NoError(t, err)
	require.Len(t, facc.Data().Out, 1)
	require.Equal(t, to, facc.Data().Out[0].Neighbor)

	tacc, err := r.Vertices.Find(t1, to.Gid)
	require.NoError(t, err)
	require.Len(t, tacc.Data().In, 1)
	require.Equal(t, from, tacc.Data().In[0].Neighbor)
}

func TestReplayerAppliesRemoveVertexUpdatesSchema(t *testing.T) {
	r := newTestReplayer(t)
	addr := gid.Address{Worker: 1, Gid: gid.New(1, 1)}
	require.NoError(t, r.Apply(delta.StateDelta{Tag: delta.CreateVertex, Vertex: addr, Labels: []string{"Person"}}))
	require.NoError(t, r.Apply(delta.StateDelta{Tag: delta.RemoveVertex, Vertex: addr}))

	require.Empty(t, r.Schema.Labels().Lookup("Person"))
	t1 := r.TxnEngine.Begin()
	defer r.TxnEngine.Commit(t1)
	_, err := r.Vertices.Find(t1, addr.Gid)
	require.Error(t, err)
}

func TestReplayerApplyAllStopsOnFirstError(t *testing.T) {
	r := newTestReplayer(t)
	missing := gid.Address{Worker: 1, Gid: gid.New(1, 99)}

	err := r.ApplyAll([]delta.StateDelta{
		{Tag: delta.SetPropertyVertex, Vertex: missing, Property: "x", Value: value.IntValue(1)},
	})
	require.Error(t, err)
}

func TestReplayerAppliesSetPropertyVertex(t *testing.T) {
	r := newTestReplayer(t)
	addr := gid.Address{Worker: 1, Gid: gid.New(1, 1)}
	require.NoError(t, r.Apply(delta.StateDelta{
		Tag: delta.CreateVertex, Vertex: addr, Labels: []string{"Person"},
		Properties: map[string]value.TypedValue{"age": value.IntValue(30)},
	}))
	require.NoError(t, r.Apply(delta.StateDelta{
		Tag: delta.SetPropertyVertex, Vertex: addr, Property: "age", Value: value.IntValue(31),
	}))

	t1 := r.TxnEngine.Begin()
	defer r.TxnEngine.Commit(t1)
	acc, err := r.Vertices.Find(t1, addr.Gid)
	require.NoError(t, err)
	require.Equal(t, value.IntValue(31), acc.Data().Properties["age"])
}
