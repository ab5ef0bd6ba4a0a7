// Package planner turns a parsed Cypher AST into a tree of logical
// operators and assigns each a cost, using cardinality statistics from the
// label and label-property indexes. It never touches storage directly —
// Plan produces a tree the executor package walks to drive the graph
// accessor.
package planner

import "github.com/arefrazavi/memgraph/pkg/cypher"

// Kind identifies the family a Node belongs to. Rather than one Go type
// per operator (and a visitor interface to dispatch across them), Node is
// a single tagged struct: cost estimation and execution are two folds over
// the same tree, switching on Kind.
type Kind int

const (
	Once Kind = iota
	ScanAll
	ScanAllByLabel
	ScanAllByLabelPropertyValue
	ScanAllByLabelPropertyRange
	Expand
	ExpandVariable
	ConstructNamedPath
	Filter
	EdgeUniquenessFilter
	Produce
	Aggregate
	OrderBy
	Skip
	Limit
	Distinct
	Unwind
	CreateNode
	CreateExpand
	SetProperty
	SetProperties
	SetLabels
	RemoveProperty
	RemoveLabels
	Delete
	Merge
	Optional
	Accumulate
	Cartesian
)

func (k Kind) String() string {
	switch k {
	case Once:
		return "Once"
	case ScanAll:
		return "ScanAll"
	case ScanAllByLabel:
		return "ScanAllByLabel"
	case ScanAllByLabelPropertyValue:
		return "ScanAllByLabelPropertyValue"
	case ScanAllByLabelPropertyRange:
		return "ScanAllByLabelPropertyRange"
	case Expand:
		return "Expand"
	case ExpandVariable:
		return "ExpandVariable"
	case ConstructNamedPath:
		return "ConstructNamedPath"
	case Filter:
		return "Filter"
	case EdgeUniquenessFilter:
		return "EdgeUniquenessFilter"
	case Produce:
		return "Produce"
	case Aggregate:
		return "Aggregate"
	case OrderBy:
		return "OrderBy"
	case Skip:
		return "Skip"
	case Limit:
		return "Limit"
	case Distinct:
		return "Distinct"
	case Unwind:
		return "Unwind"
	case CreateNode:
		return "CreateNode"
	case CreateExpand:
		return "CreateExpand"
	case SetProperty:
		return "SetProperty"
	case SetProperties:
		return "SetProperties"
	case SetLabels:
		return "SetLabels"
	case RemoveProperty:
		return "RemoveProperty"
	case RemoveLabels:
		return "RemoveLabels"
	case Delete:
		return "Delete"
	case Merge:
		return "Merge"
	case Optional:
		return "Optional"
	case Accumulate:
		return "Accumulate"
	case Cartesian:
		return "Cartesian"
	default:
		return "Unknown"
	}
}

// Direction is the traversal direction for Expand/ExpandVariable.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

// Bound is one side of a property range scan.
type Bound struct {
	Present   bool
	Value     cypher.Expr
	Inclusive bool
}

// Node is one logical operator. Only the fields relevant to Kind are
// populated.
type Node struct {
	Kind  Kind
	Input *Node
	// Right is the second subplan for Cartesian, and the create branch
	// for Merge.
	Right *Node

	// Scan fields. EqualityExpr doubles as the right-hand side expression
	// for SetProperty (SET n.prop = expr), since the two Kinds never
	// overlap on one Node.
	Label        string
	Property     string
	EqualityExpr cypher.Expr
	Lower, Upper Bound

	// Expand fields.
	Direction    Direction
	EdgeType     string
	FromSymbol   string
	ToSymbol     string
	EdgeSymbol   string
	MinHops      int
	MaxHops      int
	BreadthFirst bool

	// Filter / predicate.
	Predicate cypher.Expr

	// Produce / projection.
	Projections []Projection

	// Aggregate. GroupKeys reuses Projections: each entry's Expr is a
	// grouping key and Symbol is the name it is bound to in the output row.
	Aggregations []Aggregation

	// OrderBy.
	OrderKeys []OrderKey

	// Skip / Limit.
	CountExpr cypher.Expr

	// Unwind.
	ListExpr cypher.Expr
	AsSymbol string

	// Mutations.
	NewLabels  []string
	NewProps   map[string]cypher.Expr
	VertexSym  string
	DeleteSyms []string
	Detach     bool

	// OutputSymbol names the row-local symbol a scan/expand binds, used by
	// the executor to pick a frame slot.
	OutputSymbol string

	// OptionalSymbols lists the symbols a subplan would have bound: for
	// Optional, what a zero-row branch must still produce as null; for
	// ConstructNamedPath, the node/relationship symbols making up the path.
	OptionalSymbols []string

	// EdgeSymbols names the edge-bound symbols EdgeUniquenessFilter must
	// keep pairwise distinct within one row.
	EdgeSymbols []string
}

// Projection is one RETURN/WITH item: an expression plus the symbol it is
// bound to in the output frame.
type Projection struct {
	Expr   cypher.Expr
	Symbol string
}

// Aggregation is one aggregate function applied over the grouped rows.
type Aggregation struct {
	Func   string // count, sum, avg, min, max, collect
	Arg    cypher.Expr
	Symbol string
}

// OrderKey is one ORDER BY term.
type OrderKey struct {
	Expr       cypher.Expr
	Descending bool
}
