package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/planner"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func newTestAccessor(t *testing.T) *graph.Accessor {
	t.Helper()
	log := logx.Nop()
	engine := txn.New(0, log)
	locks := store.NewLockManager(0, log, nil)
	return &graph.Accessor{
		Self:     1,
		Txn:      engine.Begin(),
		Vertices: store.New[graph.Vertex](engine, locks, log, nil),
		Edges:    store.New[graph.Edge](engine, locks, log, nil),
		Schema:   index.NewSchema(),
		VAlloc:   gid.NewAllocator(1, 0),
		EAlloc:   gid.NewAllocator(1, 0),
		Sink:     graph.NopSink{},
		Log:      log,
	}
}

func newTestContext() *EvaluationContext {
	return &EvaluationContext{Timestamp: time.Unix(0, 0), Params: map[string]value.TypedValue{}}
}

func variable(name string) cypher.Expr { return cypher.Expr{Kind: cypher.Variable, Name: name} }

func TestScanAllFilterProduce(t *testing.T) {
	acc := newTestAccessor(t)
	_, err := acc.CreateVertex([]string{"Person"}, map[string]value.TypedValue{"age": value.IntValue(30)})
	require.NoError(t, err)
	_, err = acc.CreateVertex([]string{"Person"}, map[string]value.TypedValue{"age": value.IntValue(12)})
	require.NoError(t, err)

	plan := &planner.Node{
		Kind: planner.Produce,
		Projections: []planner.Projection{
			{Expr: cypher.Expr{Kind: cypher.Property, Target: "n", Key: "age"}, Symbol: "age"},
		},
		Input: &planner.Node{
			Kind: planner.Filter,
			Predicate: cypher.Expr{
				Kind: cypher.BinaryOp, Op: ">=",
				Left:  &cypher.Expr{Kind: cypher.Property, Target: "n", Key: "age"},
				Right: &cypher.Expr{Kind: cypher.Literal, Value: value.IntValue(18)},
			},
			Input: &planner.Node{Kind: planner.ScanAll, OutputSymbol: "n", Input: &planner.Node{Kind: planner.Once}},
		},
	}

	op, err := Build(plan, acc, newTestContext())
	require.NoError(t, err)
	require.NoError(t, op.Open())

	var ages []int64
	frame := NewFrame()
	for {
		ok, err := op.Pull(frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		b, ok := frame.Get("age")
		require.True(t, ok)
		ages = append(ages, b.Scalar.I)
	}
	require.Equal(t, []int64{30}, ages)
}

func TestExpandWalksCreatedEdge(t *testing.T) {
	acc := newTestAccessor(t)
	from, err := acc.CreateVertex([]string{"Person"}, map[string]value.TypedValue{"name": value.StringValue("a")})
	require.NoError(t, err)
	to, err := acc.CreateVertex([]string{"Person"}, map[string]value.TypedValue{"name": value.StringValue("b")})
	require.NoError(t, err)
	_, err = acc.CreateEdge(from, to, "KNOWS", nil)
	require.NoError(t, err)

	plan := &planner.Node{
		Kind: planner.Expand, FromSymbol: "a", ToSymbol: "b", EdgeSymbol: "r", Direction: planner.Out, EdgeType: "KNOWS",
		Input: &planner.Node{Kind: planner.ScanAllByLabel, Label: "Person", OutputSymbol: "a", Input: &planner.Node{Kind: planner.Once}},
	}

	op, err := Build(plan, acc, newTestContext())
	require.NoError(t, err)
	require.NoError(t, op.Open())

	found := 0
	frame := NewFrame()
	for {
		ok, err := op.Pull(frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		bTo, ok := frame.Get("b")
		require.True(t, ok)
		if bTo.VertexAddr == to {
			found++
			edgeB, ok := frame.Get("r")
			require.True(t, ok)
			require.Equal(t, "KNOWS", edgeB.Edge.Type)
		}
	}
	require.Equal(t, 1, found)
}

func TestCreateNodeAndSetProperty(t *testing.T) {
	acc := newTestAccessor(t)

	createPlan := &planner.Node{
		Kind: planner.CreateNode, NewLabels: []string{"Person"},
		NewProps:     map[string]cypher.Expr{"name": {Kind: cypher.Literal, Value: value.StringValue("neo")}},
		OutputSymbol: "n",
		Input:        &planner.Node{Kind: planner.Once},
	}
	op, err := Build(createPlan, acc, newTestContext())
	require.NoError(t, err)
	require.NoError(t, op.Open())
	frame := NewFrame()
	ok, err := op.Pull(frame)
	require.NoError(t, err)
	require.True(t, ok)
	b, ok := frame.Get("n")
	require.True(t, ok)
	require.Equal(t, "neo", b.Vertex.Properties["name"].S)

	setPlan := &planner.Node{
		Kind: planner.SetProperty, VertexSym: "n", Property: "age",
		EqualityExpr: cypher.Expr{Kind: cypher.Literal, Value: value.IntValue(42)},
		Input:        &planner.Node{Kind: planner.Once},
	}
	setOp, err := Build(setPlan, acc, newTestContext())
	require.NoError(t, err)
	require.NoError(t, setOp.Open())
	frame2 := frame.Clone()
	ok, err = setOp.Pull(frame2)
	require.NoError(t, err)
	require.True(t, ok)
	b2, _ := frame2.Get("n")
	require.Equal(t, int64(42), b2.Vertex.Properties["age"].I)

	va, err := acc.FindVertex(b.VertexAddr.Gid)
	require.NoError(t, err)
	require.Equal(t, int64(42), va.Data().Properties["age"].I)
}

func TestOrderByDescendingOverUnwind(t *testing.T) {
	acc := newTestAccessor(t)
	plan := &planner.Node{
		Kind: planner.OrderBy,
		OrderKeys: []planner.OrderKey{
			{Expr: variable("x"), Descending: true},
		},
		Input: &planner.Node{
			Kind:     planner.Unwind,
			ListExpr: cypher.Expr{Kind: cypher.ListLiteral, Args: []cypher.Expr{{Kind: cypher.Literal, Value: value.IntValue(1)}, {Kind: cypher.Literal, Value: value.IntValue(3)}, {Kind: cypher.Literal, Value: value.IntValue(2)}}},
			AsSymbol: "x",
			Input:    &planner.Node{Kind: planner.Once},
		},
	}
	op, err := Build(plan, acc, newTestContext())
	require.NoError(t, err)
	require.NoError(t, op.Open())

	var got []int64
	frame := NewFrame()
	for {
		ok, err := op.Pull(frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		b, _ := frame.Get("x")
		got = append(got, b.Scalar.I)
	}
	require.Equal(t, []int64{3, 2, 1}, got)
}
