// Package executor is the pull-based ("Volcano") evaluator: every logical
// operator becomes one Operator exposing Open/Pull/Reset, streaming rows
// through name-keyed Frames instead of materializing intermediate result
// sets (except where the plan explicitly calls for it, e.g. Accumulate,
// OrderBy, Aggregate).
package executor

import (
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// BindingKind tags what a Frame slot currently holds.
type BindingKind int

const (
	BindNull BindingKind = iota
	BindScalar
	BindVertex
	BindEdge
)

// Binding is one symbol's current value in a row: either a scalar typed
// value or a graph entity (vertex/edge), the latter carrying both its
// address (for further mutation) and a snapshot of its data (for cheap
// repeated property reads within the same row).
type Binding struct {
	Kind       BindingKind
	Scalar     value.TypedValue
	VertexAddr gid.Address
	Vertex     graph.Vertex
	EdgeAddr   gid.Address
	Edge       graph.Edge
}

func ScalarBinding(v value.TypedValue) Binding { return Binding{Kind: BindScalar, Scalar: v} }

func VertexBinding(addr gid.Address, v graph.Vertex) Binding {
	return Binding{Kind: BindVertex, VertexAddr: addr, Vertex: v}
}

func EdgeBinding(addr gid.Address, e graph.Edge) Binding {
	return Binding{Kind: BindEdge, EdgeAddr: addr, Edge: e}
}

// AsValue collapses a Binding to the scalar TypedValue expressions see: a
// vertex/edge binding used in a scalar context (e.g. returned bare) is
// represented as a map of its properties, mirroring how Cypher renders a
// node/relationship as a property map when no specific field is asked for.
func (b Binding) AsValue() value.TypedValue {
	switch b.Kind {
	case BindScalar:
		return b.Scalar
	case BindVertex:
		return value.MapValue(b.Vertex.Properties)
	case BindEdge:
		return value.MapValue(b.Edge.Properties)
	default:
		return value.NullValue()
	}
}

// Frame is one row: symbol name to Binding. Logical plans assign symbols
// during semantic analysis (here, at build time); the executor never
// looks up by index, only by name. A Frame is a map, not a fixed-slot
// vector indexed by integer symbols.
type Frame struct {
	slots map[string]Binding
}

// NewFrame returns an empty row.
func NewFrame() *Frame {
	return &Frame{slots: make(map[string]Binding)}
}

// Clone makes an independent copy, used wherever an operator emits several
// rows from one input row (Cartesian's left row, Unwind, variable-length
// Expand, Aggregate's group keys).
func (f *Frame) Clone() *Frame {
	cp := make(map[string]Binding, len(f.slots))
	for k, v := range f.slots {
		cp[k] = v
	}
	return &Frame{slots: cp}
}

func (f *Frame) Get(symbol string) (Binding, bool) {
	b, ok := f.slots[symbol]
	return b, ok
}

func (f *Frame) Set(symbol string, b Binding) {
	f.slots[symbol] = b
}

func (f *Frame) Has(symbol string) bool {
	_, ok := f.slots[symbol]
	return ok
}
