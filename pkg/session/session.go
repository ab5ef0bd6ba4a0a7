// Package session is the client-facing entry point: it parses a query,
// plans it, runs the Pull loop to completion inside one transaction, and
// assembles the column/row/stats triple a client gets back. Modeled on the
// reference project's ExecuteResult/QueryStats pair.
package session

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/coordinator"
	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/executor"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/planner"
	"github.com/arefrazavi/memgraph/pkg/snapshot"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
	"github.com/arefrazavi/memgraph/pkg/wal"
)

// QueryStats mirrors the reference project's QueryStats: the structural
// counters a client sees alongside a query's rows.
type QueryStats struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	LabelsRemoved        int
}

// ExecuteResult is what one query execution returns: column names in
// projection order, the rows as typed values in that same column order,
// and the mutation counters accumulated along the way.
type ExecuteResult struct {
	Columns []string
	Rows    [][]value.TypedValue
	Stats   QueryStats
}

// Engine wires every storage-layer package into one object a client
// session talks to. One Engine per worker process.
type Engine struct {
	Self      gid.WorkerID
	TxnEngine *txn.Engine
	Vertices  *store.Store[graph.Vertex]
	Edges     *store.Store[graph.Edge]
	Schema    *index.Schema
	VAlloc    *gid.Allocator
	EAlloc    *gid.Allocator
	Sink      graph.Sink
	Remote    graph.Remote
	Coord     *coordinator.Coordinator
	Log       zerolog.Logger

	// QueryTimeout bounds how long a single Execute call's Pull loop may
	// run before it aborts the transaction and returns an error.
	QueryTimeout time.Duration
}

// Execute parses queryText, plans it against the current schema
// statistics, and drives the resulting operator tree to completion inside
// a single fresh transaction, committing on success and aborting on a
// build or execution error. A parse or plan error is returned before any
// transaction begins.
func (e *Engine) Execute(queryText string, params map[string]value.TypedValue) (*ExecuteResult, error) {
	query, err := cypher.Parse(queryText)
	if err != nil {
		return nil, fmt.Errorf("session: parse: %w", err)
	}

	plan, err := planner.Translate(query, e.Schema)
	if err != nil {
		return nil, fmt.Errorf("session: plan: %w", err)
	}

	t := e.TxnEngine.Begin()
	if err := e.Sink.Emplace(delta.StateDelta{Tag: delta.TransactionBegin, TxID: uint64(t.ID)}); err != nil {
		e.TxnEngine.Abort(t)
		return nil, fmt.Errorf("session: wal: %w", err)
	}
	acc := &graph.Accessor{
		Self:     e.Self,
		Txn:      t,
		Vertices: e.Vertices,
		Edges:    e.Edges,
		Schema:   e.Schema,
		VAlloc:   e.VAlloc,
		EAlloc:   e.EAlloc,
		Sink:     e.Sink,
		Remote:   e.Remote,
		Log:      e.Log,
	}

	evalCtx := &executor.EvaluationContext{Timestamp: time.Now(), Params: params}
	op, err := executor.Build(plan, acc, evalCtx)
	if err != nil {
		acc.Release()
		e.TxnEngine.Abort(t)
		return nil, fmt.Errorf("session: build operator tree: %w", err)
	}

	result, err := e.run(op, plan)
	acc.Release()
	if err != nil {
		e.TxnEngine.Abort(t)
		return nil, err
	}
	if err := e.Sink.Emplace(delta.StateDelta{Tag: delta.TransactionCommit, TxID: uint64(t.ID)}); err != nil {
		e.TxnEngine.Abort(t)
		return nil, fmt.Errorf("session: wal: %w", err)
	}
	e.TxnEngine.Commit(t)

	result.Stats = QueryStats(acc.Stats)
	return result, nil
}

func (e *Engine) run(op executor.Operator, plan *planner.Node) (*ExecuteResult, error) {
	if err := op.Open(); err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}

	columns := outputColumns(plan)
	frame := executor.NewFrame()
	var rows [][]value.TypedValue

	deadline := time.Now().Add(e.queryTimeout())
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("session: query exceeded timeout of %s", e.queryTimeout())
		}
		ok, err := op.Pull(frame)
		if err != nil {
			return nil, fmt.Errorf("session: execute: %w", err)
		}
		if !ok {
			break
		}
		if len(columns) > 0 {
			row := make([]value.TypedValue, len(columns))
			for i, col := range columns {
				b, _ := frame.Get(col)
				row[i] = b.AsValue()
			}
			rows = append(rows, row)
		}
	}

	return &ExecuteResult{Columns: columns, Rows: rows}, nil
}

func (e *Engine) queryTimeout() time.Duration {
	if e.QueryTimeout <= 0 {
		return 30 * time.Second
	}
	return e.QueryTimeout
}

// outputColumns finds the query's final projection node (the first
// Produce/Aggregate walking down from the root through the
// Distinct/OrderBy/Skip/Limit wrappers translateProjection stacks on top
// of it) and returns its output symbols in projection order. A query with
// no RETURN/WITH tail (a bare write query) has no such node and reports no
// columns.
func outputColumns(n *planner.Node) []string {
	for n != nil {
		switch n.Kind {
		case planner.Produce:
			cols := make([]string, len(n.Projections))
			for i, p := range n.Projections {
				cols[i] = p.Symbol
			}
			return cols
		case planner.Aggregate:
			cols := make([]string, 0, len(n.Projections)+len(n.Aggregations))
			for _, p := range n.Projections {
				cols = append(cols, p.Symbol)
			}
			for _, a := range n.Aggregations {
				cols = append(cols, a.Symbol)
			}
			return cols
		case planner.Distinct, planner.OrderBy, planner.Skip, planner.Limit:
			n = n.Input
		default:
			return nil
		}
	}
	return nil
}

// CreateVertexLocal implements coordinator.VertexCreator: it places a
// vertex on this worker's own Gid space for a peer's CreateVertexRemote
// RPC, in its own single-operation transaction (the caller on the other
// end of the RPC has no local transaction to join).
func (e *Engine) CreateVertexLocal(labels []string, props map[string]value.TypedValue) (gid.Gid, error) {
	t := e.TxnEngine.Begin()
	if err := e.Sink.Emplace(delta.StateDelta{Tag: delta.TransactionBegin, TxID: uint64(t.ID)}); err != nil {
		e.TxnEngine.Abort(t)
		return 0, err
	}
	acc := &graph.Accessor{
		Self: e.Self, Txn: t,
		Vertices: e.Vertices, Edges: e.Edges, Schema: e.Schema,
		VAlloc: e.VAlloc, EAlloc: e.EAlloc,
		Sink: e.Sink, Remote: e.Remote, Log: e.Log,
	}
	addr, err := acc.CreateVertex(labels, props)
	acc.Release()
	if err != nil {
		e.TxnEngine.Abort(t)
		return 0, err
	}
	if err := e.Sink.Emplace(delta.StateDelta{Tag: delta.TransactionCommit, TxID: uint64(t.ID)}); err != nil {
		e.TxnEngine.Abort(t)
		return 0, err
	}
	e.TxnEngine.Commit(t)
	return addr.Gid, nil
}

// Recover rebuilds storage from the durability directory: the latest
// snapshot (if any, loaded directly into r.Vertices/r.Edges), followed by
// every WAL record written since that snapshot was taken, replayed
// through the same Replayer a coordinator.Apply drain uses. snap may be
// nil, in which case recovery replays the WAL from the very first
// transaction. Called once at startup before the session listener
// accepts any connection.
func Recover(walDir string, snap *snapshot.Store, r *graph.Replayer, log zerolog.Logger) error {
	if snap != nil {
		if err := loadSnapshot(snap, r, log); err != nil {
			return fmt.Errorf("session: snapshot load: %w", err)
		}
	}

	deltas, err := wal.Recover(walDir)
	if err != nil {
		return fmt.Errorf("session: wal recovery: %w", err)
	}
	if err := r.ApplyAll(deltas); err != nil {
		return fmt.Errorf("session: replay: %w", err)
	}
	log.Info().Int("wal_deltas", len(deltas)).Msg("session: recovery complete")
	return nil
}

// loadSnapshot inserts every row of the most recent snapshot directly into
// storage in one transaction, ahead of the WAL tail Recover replays next.
func loadSnapshot(snap *snapshot.Store, r *graph.Replayer, log zerolog.Logger) error {
	txID, vertices, edges, ok, err := snap.Load()
	if err != nil {
		return err
	}
	if !ok {
		log.Info().Msg("session: no snapshot found, replaying wal from the start")
		return nil
	}

	t := r.TxnEngine.Begin()
	for _, v := range vertices {
		r.Vertices.Insert(t, v.Addr.Gid, graph.Vertex{Labels: v.Labels, Properties: v.Properties})
		for _, label := range v.Labels {
			r.Schema.Labels().Add(label, v.Addr.Gid)
		}
		r.Schema.IncTotalVertices(1)
	}
	for _, e := range edges {
		r.Edges.Insert(t, e.Addr.Gid, graph.Edge{From: e.From, To: e.To, Type: e.Type, Properties: e.Properties})
	}
	r.TxnEngine.Commit(t)

	log.Info().Uint64("snapshot_tx_id", txID).Int("vertices", len(vertices)).Int("edges", len(edges)).
		Msg("session: loaded snapshot")
	return nil
}
