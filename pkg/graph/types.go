// Package graph provides the typed vertex/edge view over the MVCC record
// store, bound to one transaction at a time. It is where mutations turn
// into StateDeltas headed for the WAL and, for non-local records, the
// distributed coordinator.
package graph

import (
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// EdgeLink is one entry in a vertex's incoming or outgoing edge list: the
// address of the neighboring vertex, the address of the edge record
// itself, and the edge's type label.
type EdgeLink struct {
	Neighbor gid.Address
	Edge     gid.Address
	Type     string
}

// Vertex is the payload stored in one vertex Record's versions.
type Vertex struct {
	Labels     []string
	Properties map[string]value.TypedValue
	Out        []EdgeLink
	In         []EdgeLink
}

func (v Vertex) clone() Vertex {
	out := Vertex{
		Labels:     append([]string(nil), v.Labels...),
		Properties: make(map[string]value.TypedValue, len(v.Properties)),
		Out:        append([]EdgeLink(nil), v.Out...),
		In:         append([]EdgeLink(nil), v.In...),
	}
	for k, val := range v.Properties {
		out.Properties[k] = val
	}
	return out
}

// HasLabel reports whether the vertex carries label.
func (v Vertex) HasLabel(label string) bool {
	for _, l := range v.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Edge is the payload stored in one edge Record's versions.
type Edge struct {
	From       gid.Address
	To         gid.Address
	Type       string
	Properties map[string]value.TypedValue
}

func (e Edge) clone() Edge {
	out := e
	out.Properties = make(map[string]value.TypedValue, len(e.Properties))
	for k, v := range e.Properties {
		out.Properties[k] = v
	}
	return out
}
