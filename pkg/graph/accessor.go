package graph

import (
	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Sink is where committed-or-not StateDeltas go as they're produced. The
// WAL implements this directly; recovery replay passes a no-op Sink since
// deltas being replayed must not be re-logged.
type Sink interface {
	Emplace(d delta.StateDelta) error
}

// Remote buffers a delta on the worker that owns addr, for records not
// local to this accessor's worker. The distributed coordinator implements
// this for real cross-worker calls; a single-process deployment can use a
// Remote that always errors, since every address will be local.
type Remote interface {
	Update(addr gid.Address, txID uint64, d delta.StateDelta) error
	CreateVertexRemote(worker gid.WorkerID, txID uint64, labels []string, props map[string]value.TypedValue) (gid.Gid, error)
}

type NopSink struct{}

func (NopSink) Emplace(delta.StateDelta) error { return nil }

// Stats tallies the structural changes one transaction's mutations made,
// the counters pkg/session reports back to the client alongside a query's
// rows.
type Stats struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	LabelsRemoved        int
}

// Accessor is the transaction-bound façade the executor's mutation
// operators call through. One Accessor per active transaction.
type Accessor struct {
	Self     gid.WorkerID
	Txn      *txn.Transaction
	Vertices *store.Store[Vertex]
	Edges    *store.Store[Edge]
	Schema   *index.Schema
	VAlloc   *gid.Allocator
	EAlloc   *gid.Allocator
	Sink     Sink
	Remote   Remote
	Log      zerolog.Logger
	Stats    Stats
}

func (a *Accessor) local(addr gid.Address) bool { return addr.Worker == a.Self }

// CreateVertex inserts a new vertex owned by this worker, logs its
// CREATE_VERTEX delta, and indexes its initial labels/properties.
func (a *Accessor) CreateVertex(labels []string, props map[string]value.TypedValue) (gid.Address, error) {
	g := a.VAlloc.Next()
	v := Vertex{Labels: append([]string(nil), labels...), Properties: cloneProps(props)}
	a.Vertices.Insert(a.Txn, g, v)
	a.Schema.IncTotalVertices(1)
	for _, l := range labels {
		a.Schema.Labels().Add(l, g)
	}
	for prop, val := range props {
		if idx, ok := a.Schema.PropertyIndexFor(firstLabel(labels), prop); ok {
			idx.Add(val, g)
		}
	}

	d := delta.StateDelta{Tag: delta.CreateVertex, TxID: uint64(a.Txn.ID), Vertex: gid.Address{Worker: a.Self, Gid: g}, Labels: labels, Properties: props}
	if err := a.Sink.Emplace(d); err != nil {
		return gid.Address{}, err
	}
	a.Stats.NodesCreated++
	a.Stats.LabelsAdded += len(labels)
	a.Stats.PropertiesSet += len(props)
	return gid.Address{Worker: a.Self, Gid: g}, nil
}

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

func cloneProps(m map[string]value.TypedValue) map[string]value.TypedValue {
	out := make(map[string]value.TypedValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FindVertex resolves the version of a vertex visible to this accessor's
// transaction. Only valid for local addresses — remote reads are not part
// of this core (a query planner would route them to the owning worker's
// own accessor in a full cluster deployment).
func (a *Accessor) FindVertex(g gid.Gid) (*store.Accessor[Vertex], error) {
	return a.Vertices.Find(a.Txn, g)
}

// FindEdge resolves the version of an edge visible to this accessor's
// transaction.
func (a *Accessor) FindEdge(g gid.Gid) (*store.Accessor[Edge], error) {
	return a.Edges.Find(a.Txn, g)
}

// CreateEdge inserts the edge record on this worker, then links it into
// the from-vertex's outgoing list and the to-vertex's incoming list —
// locally if the vertex is owned here, over Remote otherwise, exactly the
// two-sided structural update spec's distributed-edge-creation scenario
// describes.
func (a *Accessor) CreateEdge(from, to gid.Address, edgeType string, props map[string]value.TypedValue) (gid.Address, error) {
	eg := a.EAlloc.Next()
	eAddr := gid.Address{Worker: a.Self, Gid: eg}
	a.Edges.Insert(a.Txn, eg, Edge{From: from, To: to, Type: edgeType, Properties: cloneProps(props)})

	ref := delta.EdgeRef{Edge: eAddr, Other: to, Type: edgeType}
	outDelta := delta.StateDelta{Tag: delta.AddOutEdge, TxID: uint64(a.Txn.ID), EdgeEndpoints: ref}
	if err := a.applyOrBuffer(from, outDelta, func() error {
		return a.addOutEdgeLocal(from.Gid, EdgeLink{Neighbor: to, Edge: eAddr, Type: edgeType})
	}); err != nil {
		return gid.Address{}, err
	}

	inRef := delta.EdgeRef{Edge: eAddr, Other: from, Type: edgeType}
	inDelta := delta.StateDelta{Tag: delta.AddInEdge, TxID: uint64(a.Txn.ID), EdgeEndpoints: inRef}
	if err := a.applyOrBuffer(to, inDelta, func() error {
		return a.addInEdgeLocal(to.Gid, EdgeLink{Neighbor: from, Edge: eAddr, Type: edgeType})
	}); err != nil {
		return gid.Address{}, err
	}

	createDelta := delta.StateDelta{Tag: delta.CreateEdge, TxID: uint64(a.Txn.ID), Vertex: from, Edge: eAddr, EdgeEndpoints: delta.EdgeRef{Edge: eAddr, Other: to, Type: edgeType}, Properties: cloneProps(props)}
	if err := a.Sink.Emplace(createDelta); err != nil {
		return gid.Address{}, err
	}
	a.Stats.RelationshipsCreated++
	a.Stats.PropertiesSet += len(props)
	return eAddr, nil
}

// applyOrBuffer runs apply() when addr is local, or forwards d to the
// owning worker over Remote otherwise.
func (a *Accessor) applyOrBuffer(addr gid.Address, d delta.StateDelta, apply func() error) error {
	if a.local(addr) {
		return apply()
	}
	if a.Remote == nil {
		return errs.ErrRpcFailure
	}
	return a.Remote.Update(addr, uint64(a.Txn.ID), d)
}

func (a *Accessor) addOutEdgeLocal(g gid.Gid, link EdgeLink) error {
	acc, err := a.Vertices.Find(a.Txn, g)
	if err != nil {
		return err
	}
	_, err = a.Vertices.Update(acc, func(v Vertex) Vertex {
		nv := v.clone()
		nv.Out = append(nv.Out, link)
		return nv
	})
	return err
}

func (a *Accessor) addInEdgeLocal(g gid.Gid, link EdgeLink) error {
	acc, err := a.Vertices.Find(a.Txn, g)
	if err != nil {
		return err
	}
	_, err = a.Vertices.Update(acc, func(v Vertex) Vertex {
		nv := v.clone()
		nv.In = append(nv.In, link)
		return nv
	})
	return err
}

// SetVertexProperty sets one property and keeps the label-property index
// in step.
func (a *Accessor) SetVertexProperty(acc *store.Accessor[Vertex], property string, v value.TypedValue) (*store.Accessor[Vertex], error) {
	var old value.TypedValue
	hadOld := false
	next, err := a.Vertices.Update(acc, func(cur Vertex) Vertex {
		nv := cur.clone()
		if o, ok := nv.Properties[property]; ok {
			old, hadOld = o, true
		}
		nv.Properties[property] = v
		return nv
	})
	if err != nil {
		return nil, err
	}

	for _, label := range next.Data().Labels {
		if idx, ok := a.Schema.PropertyIndexFor(label, property); ok {
			if hadOld {
				idx.Remove(old, acc.Gid)
			}
			idx.Add(v, acc.Gid)
		}
	}

	d := delta.StateDelta{Tag: delta.SetPropertyVertex, TxID: uint64(a.Txn.ID), Vertex: gid.Address{Worker: a.Self, Gid: acc.Gid}, Property: property, Value: v}
	if err := a.Sink.Emplace(d); err != nil {
		return nil, err
	}
	a.Stats.PropertiesSet++
	return next, nil
}

// SetEdgeProperty sets one property on an edge.
func (a *Accessor) SetEdgeProperty(acc *store.Accessor[Edge], property string, v value.TypedValue) (*store.Accessor[Edge], error) {
	next, err := a.Edges.Update(acc, func(cur Edge) Edge {
		ne := cur.clone()
		ne.Properties[property] = v
		return ne
	})
	if err != nil {
		return nil, err
	}
	d := delta.StateDelta{Tag: delta.SetPropertyEdge, TxID: uint64(a.Txn.ID), Edge: gid.Address{Worker: a.Self, Gid: acc.Gid}, Property: property, Value: v}
	if err := a.Sink.Emplace(d); err != nil {
		return nil, err
	}
	a.Stats.PropertiesSet++
	return next, nil
}

// AddLabel adds label to a vertex and updates the label index.
func (a *Accessor) AddLabel(acc *store.Accessor[Vertex], label string) (*store.Accessor[Vertex], error) {
	next, err := a.Vertices.Update(acc, func(cur Vertex) Vertex {
		nv := cur.clone()
		if !nv.HasLabel(label) {
			nv.Labels = append(nv.Labels, label)
		}
		return nv
	})
	if err != nil {
		return nil, err
	}
	a.Schema.Labels().Add(label, acc.Gid)
	d := delta.StateDelta{Tag: delta.AddLabel, TxID: uint64(a.Txn.ID), Vertex: gid.Address{Worker: a.Self, Gid: acc.Gid}, Labels: []string{label}}
	if err := a.Sink.Emplace(d); err != nil {
		return nil, err
	}
	a.Stats.LabelsAdded++
	return next, nil
}

// RemoveLabel removes label from a vertex and updates the label index.
func (a *Accessor) RemoveLabel(acc *store.Accessor[Vertex], label string) (*store.Accessor[Vertex], error) {
	next, err := a.Vertices.Update(acc, func(cur Vertex) Vertex {
		nv := cur.clone()
		filtered := nv.Labels[:0]
		for _, l := range nv.Labels {
			if l != label {
				filtered = append(filtered, l)
			}
		}
		nv.Labels = filtered
		return nv
	})
	if err != nil {
		return nil, err
	}
	a.Schema.Labels().Remove(label, acc.Gid)
	d := delta.StateDelta{Tag: delta.RemoveLabel, TxID: uint64(a.Txn.ID), Vertex: gid.Address{Worker: a.Self, Gid: acc.Gid}, Labels: []string{label}}
	if err := a.Sink.Emplace(d); err != nil {
		return nil, err
	}
	a.Stats.LabelsRemoved++
	return next, nil
}

// RemoveVertex tombstones a vertex. When checkEmpty is set, it fails with
// ErrUnableToDeleteVertex if the vertex still has incident edges.
func (a *Accessor) RemoveVertex(acc *store.Accessor[Vertex], checkEmpty bool) error {
	data := acc.Data()
	if checkEmpty && (len(data.Out) > 0 || len(data.In) > 0) {
		return errs.ErrUnableToDeleteVertex
	}
	if _, err := a.Vertices.Remove(acc); err != nil {
		return err
	}
	a.Schema.IncTotalVertices(-1)
	for _, l := range data.Labels {
		a.Schema.Labels().Remove(l, acc.Gid)
	}
	d := delta.StateDelta{Tag: delta.RemoveVertex, TxID: uint64(a.Txn.ID), Vertex: gid.Address{Worker: a.Self, Gid: acc.Gid}, CheckEmpty: checkEmpty}
	if err := a.Sink.Emplace(d); err != nil {
		return err
	}
	a.Stats.NodesDeleted++
	return nil
}

// RemoveEdge tombstones an edge and, per spec, also buffers REMOVE_OUT_EDGE
// on the from-vertex's owner and REMOVE_IN_EDGE on the to-vertex's owner
// when it is local.
func (a *Accessor) RemoveEdge(acc *store.Accessor[Edge]) error {
	data := acc.Data()
	eAddr := gid.Address{Worker: a.Self, Gid: acc.Gid}
	if _, err := a.Edges.Remove(acc); err != nil {
		return err
	}

	outDelta := delta.StateDelta{Tag: delta.RemoveOutEdge, TxID: uint64(a.Txn.ID), EdgeEndpoints: delta.EdgeRef{Edge: eAddr, Other: data.To, Type: data.Type}}
	if err := a.applyOrBuffer(data.From, outDelta, func() error {
		return a.unlinkEdge(data.From.Gid, acc.Gid, true)
	}); err != nil {
		return err
	}

	if a.local(data.To) {
		inDelta := delta.StateDelta{Tag: delta.RemoveInEdge, TxID: uint64(a.Txn.ID), EdgeEndpoints: delta.EdgeRef{Edge: eAddr, Other: data.From, Type: data.Type}}
		if err := a.applyOrBuffer(data.To, inDelta, func() error {
			return a.unlinkEdge(data.To.Gid, acc.Gid, false)
		}); err != nil {
			return err
		}
	}

	d := delta.StateDelta{Tag: delta.RemoveEdge, TxID: uint64(a.Txn.ID), Edge: eAddr}
	if err := a.Sink.Emplace(d); err != nil {
		return err
	}
	a.Stats.RelationshipsDeleted++
	return nil
}

func (a *Accessor) unlinkEdge(vertexGid, edgeGid gid.Gid, out bool) error {
	acc, err := a.Vertices.Find(a.Txn, vertexGid)
	if err != nil {
		return err
	}
	_, err = a.Vertices.Update(acc, func(v Vertex) Vertex {
		nv := v.clone()
		if out {
			nv.Out = removeLink(nv.Out, edgeGid)
		} else {
			nv.In = removeLink(nv.In, edgeGid)
		}
		return nv
	})
	return err
}

func removeLink(links []EdgeLink, edgeGid gid.Gid) []EdgeLink {
	filtered := links[:0]
	for _, l := range links {
		if l.Edge.Gid != edgeGid {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

// Release gives up every write lock this accessor's transaction holds, at
// commit or abort.
func (a *Accessor) Release() {
	a.Vertices.ReleaseLocks(a.Txn)
	a.Edges.ReleaseLocks(a.Txn)
}
