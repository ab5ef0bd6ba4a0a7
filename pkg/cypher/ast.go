// Package cypher provides a lexer, recursive-descent parser, and AST for
// the Cypher query language subset memgraph executes: match, optional
// match, create, merge, set, delete, remove, unwind, with, return, where,
// order by, skip, limit, distinct.
package cypher

import "github.com/arefrazavi/memgraph/pkg/value"

// ExprKind tags the variant an Expr holds.
type ExprKind int

const (
	Literal ExprKind = iota
	Parameter
	Variable
	Property
	BinaryOp
	UnaryOp
	FunctionCall
	ListLiteral
	MapLiteral
)

// Expr is every expression kind as one tagged struct, the same sum-type
// idiom the logical plan and StateDelta use: one shape, a Kind field
// deciding which other fields are meaningful.
type Expr struct {
	Kind ExprKind

	// Literal
	Value value.TypedValue

	// Parameter/Variable/FunctionCall: the bare name ($name, n, count(...)).
	Name string

	// Property: Target names the bound variable, Key the property name.
	Target string
	Key    string

	// BinaryOp/UnaryOp: Op is one of "+","-","*","/","%","=","<>","<","<=",
	// ">",">=","AND","OR","XOR","NOT","IS NULL","IS NOT NULL","IN",
	// "STARTS WITH","CONTAINS","ENDS WITH". UnaryOp uses only Right.
	Op          string
	Left, Right *Expr

	// FunctionCall args / ListLiteral items.
	Args []Expr

	// MapLiteral entries.
	Map map[string]Expr
}

// Direction is a relationship pattern's arrow direction.
type Direction int

const (
	Out Direction = iota
	In
	Either
)

// NodePattern is one (n:Label {prop: expr}) pattern element.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties map[string]Expr
}

// RelPattern is one -[r:TYPE*min..max]- pattern element.
type RelPattern struct {
	Variable   string
	Types      []string
	Direction  Direction
	Properties map[string]Expr
	Variable_  bool // true when a *min..max range is present (ExpandVariable)
	MinHops    int
	MaxHops    int
}

// PatternElement is a path: alternating nodes and relationships, always
// one more node than relationship.
type PatternElement struct {
	Nodes []NodePattern
	Rels  []RelPattern
}

// SetItem is one SET sub-clause item: property assignment, whole-map merge
// (n = {...} is modeled as a single Property with empty Key), or a label
// addition.
type SetItem struct {
	Variable string
	Property string
	Expr     Expr
	Labels   []string
}

// RemoveItem is one REMOVE sub-clause item.
type RemoveItem struct {
	Variable string
	Property string
	Labels   []string
}

// ReturnItem is one projected expression in WITH/RETURN.
type ReturnItem struct {
	Expr Expr
	As   string
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

// ClauseKind tags a Clause's variant.
type ClauseKind int

const (
	CMatch ClauseKind = iota
	CCreate
	CMerge
	CSet
	CDelete
	CRemove
	CWith
	CUnwind
	CReturn
)

// Clause is every clause kind as one tagged struct.
type Clause struct {
	Kind ClauseKind

	// Match/Create/Merge.
	Patterns []PatternElement
	Where    Expr
	Optional bool
	OnCreate []SetItem
	OnMatch  []SetItem

	// Set.
	SetItems []SetItem

	// Delete.
	DeleteVars []string
	Detach     bool

	// Remove.
	RemoveItems []RemoveItem

	// With/Return.
	Items    []ReturnItem
	OrderBy  []OrderItem
	Skip     Expr
	Limit    Expr
	Distinct bool

	// Unwind.
	UnwindList Expr
	UnwindAs   string
}

// Query is a parsed single-statement Cypher query: a flat clause sequence.
type Query struct {
	Clauses []Clause
}
