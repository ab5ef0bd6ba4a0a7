// Package delta defines StateDelta, the single unit both the WAL and the
// distributed coordinator's cross-worker replication speak. Every mutation
// the executor performs through the graph accessor is expressed as one of
// these before it reaches storage.
package delta

import (
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Tag identifies the kind of change a StateDelta carries. The set is
// closed — every StateDelta has exactly one tag drawn from this list.
type Tag uint8

const (
	TransactionBegin Tag = iota
	TransactionCommit
	TransactionAbort
	CreateVertex
	CreateEdge
	SetPropertyVertex
	SetPropertyEdge
	AddLabel
	RemoveLabel
	AddOutEdge
	AddInEdge
	RemoveVertex
	RemoveEdge
	RemoveOutEdge
	RemoveInEdge
	BuildIndex
)

func (t Tag) String() string {
	switch t {
	case TransactionBegin:
		return "TRANSACTION_BEGIN"
	case TransactionCommit:
		return "TRANSACTION_COMMIT"
	case TransactionAbort:
		return "TRANSACTION_ABORT"
	case CreateVertex:
		return "CREATE_VERTEX"
	case CreateEdge:
		return "CREATE_EDGE"
	case SetPropertyVertex:
		return "SET_PROPERTY_VERTEX"
	case SetPropertyEdge:
		return "SET_PROPERTY_EDGE"
	case AddLabel:
		return "ADD_LABEL"
	case RemoveLabel:
		return "REMOVE_LABEL"
	case AddOutEdge:
		return "ADD_OUT_EDGE"
	case AddInEdge:
		return "ADD_IN_EDGE"
	case RemoveVertex:
		return "REMOVE_VERTEX"
	case RemoveEdge:
		return "REMOVE_EDGE"
	case RemoveOutEdge:
		return "REMOVE_OUT_EDGE"
	case RemoveInEdge:
		return "REMOVE_IN_EDGE"
	case BuildIndex:
		return "BUILD_INDEX"
	default:
		return "UNKNOWN"
	}
}

// IsTransactionEnd reports whether the tag marks the end of a transaction
// (commit or abort). The WAL's synchronous-commit path flushes before
// returning exactly when Emplace is called with one of these.
func (t Tag) IsTransactionEnd() bool {
	return t == TransactionCommit || t == TransactionAbort
}

// EdgeRef names one endpoint of an edge delta: the edge's own address, the
// address of the vertex at the other end, and the edge's type label.
type EdgeRef struct {
	Edge  gid.Address
	Other gid.Address
	Type  string
}

// StateDelta is one logical change made by a transaction. Only the fields
// relevant to Tag are populated; the rest are zero. This mirrors a tagged
// union with Go's usual "one struct, tag decides which fields matter"
// idiom rather than an interface-per-tag, since every delta needs the same
// cheap encode/decode path and a transaction id on every variant.
type StateDelta struct {
	Tag  Tag
	TxID uint64
	// Vertex is the vertex touched by vertex-tagged deltas; for CreateEdge
	// it doubles as the edge's from-endpoint (EdgeEndpoints.Other is the
	// to-endpoint), since CreateEdge never also needs a standalone vertex.
	Vertex gid.Address
	Edge   gid.Address
	// Labels holds the label(s) touched by AddLabel/RemoveLabel and the
	// initial label set for CreateVertex.
	Labels []string
	// Property and Value are used by SetPropertyVertex/SetPropertyEdge.
	Property string
	Value    value.TypedValue
	// Properties holds the initial property map for CreateVertex and
	// CreateEdge.
	Properties map[string]value.TypedValue
	// EdgeEndpoints is used by CreateEdge/AddOutEdge/AddInEdge/RemoveEdge/
	// RemoveOutEdge/RemoveInEdge.
	EdgeEndpoints EdgeRef
	// CheckEmpty is used by RemoveVertex: fail rather than delete a vertex
	// that still has incident edges.
	CheckEmpty bool
	// IndexLabel/IndexProperty are used by BuildIndex.
	IndexLabel    string
	IndexProperty string
}
