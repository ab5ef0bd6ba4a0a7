package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
)

type recordingSink struct{ emitted []delta.StateDelta }

func (s *recordingSink) Emplace(d delta.StateDelta) error {
	s.emitted = append(s.emitted, d)
	return nil
}

func newAccessor(t *testing.T) (*Accessor, *txn.Engine, *recordingSink) {
	t.Helper()
	log := logx.Nop()
	engine := txn.New(0, log)
	locks := store.NewLockManager(0, log, nil)
	sink := &recordingSink{}
	return &Accessor{
		Self:     1,
		Txn:      engine.Begin(),
		Vertices: store.New[Vertex](engine, locks, log, nil),
		Edges:    store.New[Edge](engine, locks, log, nil),
		Schema:   index.NewSchema(),
		VAlloc:   gid.NewAllocator(1, 0),
		EAlloc:   gid.NewAllocator(1, 0),
		Sink:     sink,
		Log:      log,
	}, engine, sink
}

func TestCreateVertexIndexesLabelsAndEmitsDelta(t *testing.T) {
	a, _, sink := newAccessor(t)
	addr, err := a.CreateVertex([]string{"Person"}, map[string]value.TypedValue{"age": value.IntValue(30)})
	require.NoError(t, err)
	require.Equal(t, 1, a.Schema.Labels().Count("Person"))
	require.Len(t, sink.emitted, 1)
	require.Equal(t, delta.CreateVertex, sink.emitted[0].Tag)
	require.Equal(t, addr, sink.emitted[0].Vertex)
}

func TestCreateEdgeLinksBothVerticesLocally(t *testing.T) {
	a, _, _ := newAccessor(t)
	from, err := a.CreateVertex([]string{"Person"}, nil)
	require.NoError(t, err)
	to, err := a.CreateVertex([]string{"Person"}, nil)
	require.NoError(t, err)

	eAddr, err := a.CreateEdge(from, to, "KNOWS", nil)
	require.NoError(t, err)

	fromAcc, err := a.FindVertex(from.Gid)
	require.NoError(t, err)
	require.Len(t, fromAcc.Data().Out, 1)
	require.Equal(t, eAddr, fromAcc.Data().Out[0].Edge)

	toAcc, err := a.FindVertex(to.Gid)
	require.NoError(t, err)
	require.Len(t, toAcc.Data().In, 1)
	require.Equal(t, eAddr, toAcc.Data().In[0].Edge)
}

func TestRemoveVertexChecksEmpty(t *testing.T) {
	a, _, _ := newAccessor(t)
	from, _ := a.CreateVertex([]string{"Person"}, nil)
	to, _ := a.CreateVertex([]string{"Person"}, nil)
	_, err := a.CreateEdge(from, to, "KNOWS", nil)
	require.NoError(t, err)

	fromAcc, _ := a.FindVertex(from.Gid)
	err = a.RemoveVertex(fromAcc, true)
	require.ErrorIs(t, err, errs.ErrUnableToDeleteVertex)
}
