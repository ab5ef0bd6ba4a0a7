package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logx.Nop()
	txnEngine := txn.New(0, log)
	locks := store.NewLockManager(0, log, nil)
	return &Engine{
		Self:      1,
		TxnEngine: txnEngine,
		Vertices:  store.New[graph.Vertex](txnEngine, locks, log, nil),
		Edges:     store.New[graph.Edge](txnEngine, locks, log, nil),
		Schema:    index.NewSchema(),
		VAlloc:    gid.NewAllocator(1, 0),
		EAlloc:    gid.NewAllocator(1, 0),
		Sink:      graph.NopSink{},
		Log:       log,
	}
}

func TestExecuteCreateAndMatchRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Execute(`CREATE (n:Person {name: "Ada", age: 30})`, nil)
	require.NoError(t, err)

	result, err := e.Execute(`MATCH (n:Person) WHERE n.age >= 18 RETURN n.name AS name`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	require.Equal(t, value.StringValue("Ada"), result.Rows[0][0])
}

func TestExecuteReportsCreationStats(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Execute(`CREATE (n:Person {name: "Bob"})`, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Stats.NodesCreated)
	require.Equal(t, 1, result.Stats.LabelsAdded)
	require.Equal(t, 1, result.Stats.PropertiesSet)
}

func TestExecuteCountAggregate(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(`CREATE (n:Person {age: 10})`, nil)
	require.NoError(t, err)
	_, err = e.Execute(`CREATE (n:Person {age: 20})`, nil)
	require.NoError(t, err)

	result, err := e.Execute(`MATCH (n:Person) RETURN count(*) AS total`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"total"}, result.Columns)
	require.Len(t, result.Rows, 1)
	require.Equal(t, value.IntValue(2), result.Rows[0][0])
}

func TestExecuteParseErrorReturnsError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(`NOT CYPHER AT ALL (((`, nil)
	require.Error(t, err)
}

func TestExecuteRespectsQueryTimeout(t *testing.T) {
	e := newTestEngine(t)
	e.QueryTimeout = time.Nanosecond
	_, err := e.Execute(`MATCH (n) RETURN n`, nil)
	require.Error(t, err)
}

func TestCreateVertexLocalSatisfiesVertexCreator(t *testing.T) {
	e := newTestEngine(t)
	g, err := e.CreateVertexLocal([]string{"Person"}, map[string]value.TypedValue{"name": value.StringValue("Cleo")})
	require.NoError(t, err)
	require.NotZero(t, g)

	result, err := e.Execute(`MATCH (n:Person) RETURN n.name AS name`, nil)
	require.NoError(t, err)
	require.Equal(t, value.StringValue("Cleo"), result.Rows[0][0])
}
