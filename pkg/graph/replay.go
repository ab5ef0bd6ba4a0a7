package graph

import (
	"fmt"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Replayer applies already-committed StateDeltas directly to storage,
// bypassing Accessor's gid allocation and Sink emission (it would be
// nonsensical to re-log a delta being replayed, or to allocate a fresh gid
// for a record whose address the delta already names). Every delta's
// StateDelta.Vertex/Edge address is assumed local to self; it is the
// caller's job (WAL recovery reading its own worker's log, or the
// coordinator routing only deltas addressed to this worker) to guarantee
// that.
//
// Each delta is applied in its own single-operation transaction on
// txEngine: the deltas being replayed already represent a committed
// outcome, so there is nothing to roll back across a whole batch, only
// within one record's write.
type Replayer struct {
	Self      gid.WorkerID
	Vertices  *store.Store[Vertex]
	Edges     *store.Store[Edge]
	Schema    *index.Schema
	TxnEngine *txn.Engine
}

// Apply implements coordinator.Applier, letting a Replayer double as the
// drain target for a worker's buffered cross-worker deltas.
func (r *Replayer) Apply(d delta.StateDelta) error {
	t := r.TxnEngine.Begin()
	if err := r.applyOne(t, d); err != nil {
		r.TxnEngine.Abort(t)
		return err
	}
	r.TxnEngine.Commit(t)
	return nil
}

// ApplyAll replays a whole WAL-recovered or snapshot-following delta
// sequence in order.
func (r *Replayer) ApplyAll(deltas []delta.StateDelta) error {
	for _, d := range deltas {
		if err := r.Apply(d); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) applyOne(t *txn.Transaction, d delta.StateDelta) error {
	switch d.Tag {
	case delta.TransactionBegin, delta.TransactionCommit, delta.TransactionAbort:
		return nil

	case delta.CreateVertex:
		r.Vertices.Insert(t, d.Vertex.Gid, Vertex{Labels: append([]string(nil), d.Labels...), Properties: cloneProps(d.Properties)})
		r.Schema.IncTotalVertices(1)
		for _, l := range d.Labels {
			r.Schema.Labels().Add(l, d.Vertex.Gid)
		}
		for prop, val := range d.Properties {
			if idx, ok := r.Schema.PropertyIndexFor(firstLabel(d.Labels), prop); ok {
				idx.Add(val, d.Vertex.Gid)
			}
		}
		return nil

	case delta.CreateEdge:
		r.Edges.Insert(t, d.Edge.Gid, Edge{From: d.Vertex, To: d.EdgeEndpoints.Other, Type: d.EdgeEndpoints.Type, Properties: cloneProps(d.Properties)})
		return nil

	case delta.AddOutEdge:
		return r.updateVertex(t, d.Vertex, func(v Vertex) Vertex {
			nv := v.clone()
			nv.Out = append(nv.Out, EdgeLink{Neighbor: d.EdgeEndpoints.Other, Edge: d.EdgeEndpoints.Edge, Type: d.EdgeEndpoints.Type})
			return nv
		})

	case delta.AddInEdge:
		return r.updateVertex(t, d.Vertex, func(v Vertex) Vertex {
			nv := v.clone()
			nv.In = append(nv.In, EdgeLink{Neighbor: d.EdgeEndpoints.Other, Edge: d.EdgeEndpoints.Edge, Type: d.EdgeEndpoints.Type})
			return nv
		})

	case delta.RemoveOutEdge:
		return r.updateVertex(t, d.Vertex, func(v Vertex) Vertex {
			nv := v.clone()
			nv.Out = removeLink(nv.Out, d.EdgeEndpoints.Edge.Gid)
			return nv
		})

	case delta.RemoveInEdge:
		return r.updateVertex(t, d.Vertex, func(v Vertex) Vertex {
			nv := v.clone()
			nv.In = removeLink(nv.In, d.EdgeEndpoints.Edge.Gid)
			return nv
		})

	case delta.SetPropertyVertex:
		return r.setVertexProperty(t, d)

	case delta.SetPropertyEdge:
		acc, err := r.Edges.Find(t, d.Edge.Gid)
		if err != nil {
			return err
		}
		_, err = r.Edges.Update(acc, func(cur Edge) Edge {
			ne := cur.clone()
			ne.Properties[d.Property] = d.Value
			return ne
		})
		return err

	case delta.AddLabel:
		acc, err := r.Vertices.Find(t, d.Vertex.Gid)
		if err != nil {
			return err
		}
		_, err = r.Vertices.Update(acc, func(cur Vertex) Vertex {
			nv := cur.clone()
			if !nv.HasLabel(d.Labels[0]) {
				nv.Labels = append(nv.Labels, d.Labels[0])
			}
			return nv
		})
		if err != nil {
			return err
		}
		r.Schema.Labels().Add(d.Labels[0], d.Vertex.Gid)
		return nil

	case delta.RemoveLabel:
		acc, err := r.Vertices.Find(t, d.Vertex.Gid)
		if err != nil {
			return err
		}
		_, err = r.Vertices.Update(acc, func(cur Vertex) Vertex {
			nv := cur.clone()
			filtered := nv.Labels[:0]
			for _, l := range nv.Labels {
				if l != d.Labels[0] {
					filtered = append(filtered, l)
				}
			}
			nv.Labels = filtered
			return nv
		})
		if err != nil {
			return err
		}
		r.Schema.Labels().Remove(d.Labels[0], d.Vertex.Gid)
		return nil

	case delta.RemoveVertex:
		acc, err := r.Vertices.Find(t, d.Vertex.Gid)
		if err != nil {
			return err
		}
		data := acc.Data()
		if _, err := r.Vertices.Remove(acc); err != nil {
			return err
		}
		r.Schema.IncTotalVertices(-1)
		for _, l := range data.Labels {
			r.Schema.Labels().Remove(l, d.Vertex.Gid)
		}
		return nil

	case delta.RemoveEdge:
		acc, err := r.Edges.Find(t, d.Edge.Gid)
		if err != nil {
			return err
		}
		_, err = r.Edges.Remove(acc)
		return err

	case delta.BuildIndex:
		r.Schema.BuildIndex(d.IndexLabel, d.IndexProperty, func() []index.ScanRow {
			all := r.Vertices.All(t)
			rows := make([]index.ScanRow, 0, len(all))
			for _, a := range all {
				v := a.Data()
				rows = append(rows, index.ScanRow{Gid: a.Gid, Labels: v.Labels, Properties: v.Properties})
			}
			return rows
		})
		return nil

	default:
		return fmt.Errorf("%w: unknown delta tag %s during replay", errs.ErrQuery, d.Tag)
	}
}

func (r *Replayer) updateVertex(t *txn.Transaction, addr gid.Address, mutate func(Vertex) Vertex) error {
	acc, err := r.Vertices.Find(t, addr.Gid)
	if err != nil {
		return err
	}
	_, err = r.Vertices.Update(acc, mutate)
	return err
}

func (r *Replayer) setVertexProperty(t *txn.Transaction, d delta.StateDelta) error {
	acc, err := r.Vertices.Find(t, d.Vertex.Gid)
	if err != nil {
		return err
	}
	var old value.TypedValue
	hadOld := false
	next, err := r.Vertices.Update(acc, func(cur Vertex) Vertex {
		nv := cur.clone()
		if o, ok := nv.Properties[d.Property]; ok {
			old, hadOld = o, true
		}
		nv.Properties[d.Property] = d.Value
		return nv
	})
	if err != nil {
		return err
	}
	for _, label := range next.Data().Labels {
		if idx, ok := r.Schema.PropertyIndexFor(label, d.Property); ok {
			if hadOld {
				idx.Remove(old, d.Vertex.Gid)
			}
			idx.Add(d.Value, d.Vertex.Gid)
		}
	}
	return nil
}
