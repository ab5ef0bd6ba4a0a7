package planner

import "github.com/arefrazavi/memgraph/pkg/cypher"

// CostModel holds every per-operator cost constant and cardinality
// multiplier. All of them are implementation-tunable but must stay
// strictly positive; FilterMultiplier is additionally constrained to be
// strictly less than 1, the only way the cost visitor can guarantee a
// Filter always shrinks cardinality.
type CostModel struct {
	KOnce                        float64
	KScanAll                     float64
	KScanAllByLabel              float64
	KScanAllByLabelPropertyValue float64
	KScanAllByLabelPropertyRange float64
	KExpand                      float64
	KExpandVariable              float64
	KExpandBreadthFirst          float64
	KConstructNamedPath          float64
	KFilter                      float64
	KEdgeUniquenessFilter        float64
	KProduce                     float64
	KAggregate                   float64
	KOrderBy                     float64
	KSkip                        float64
	KLimit                       float64
	KDistinct                    float64
	KUnwind                      float64
	KCreateNode                  float64
	KCreateExpand                float64
	KSetProperty                 float64
	KRemoveLabels                float64
	KDelete                      float64
	KMerge                       float64
	KOptional                    float64
	KAccumulate                  float64
	KCartesian                   float64

	// FilterMultiplier scales cardinality after a Filter; must be < 1.
	FilterMultiplier float64
	// ExpandMultiplier estimates the average out/in-degree fanout of
	// Expand when no better statistic is available.
	ExpandMultiplier float64
	// ExpandVariableMultiplier is ExpandMultiplier compounded per hop, by
	// default applied once per average path.
	ExpandVariableMultiplier float64
	// DefaultUnwindCardinality is used for UNWIND over an expression whose
	// size isn't known until runtime (i.e. not a list literal).
	DefaultUnwindCardinality float64
	// DistinctMultiplier is the fan-in estimate Distinct and Aggregate
	// apply to cardinality, having no direct analogue to an index lookup.
	DistinctMultiplier float64
}

// DefaultCostModel mirrors the constants a tuned cost-based planner would
// ship with: scan operators scale with the narrowed search space, Expand
// scales with an assumed average degree, and Filter, EdgeUniquenessFilter,
// Distinct and Aggregate shrink cardinality by their multipliers.
func DefaultCostModel() CostModel {
	return CostModel{
		KOnce:                        0.1,
		KScanAll:                     1.0,
		KScanAllByLabel:              1.0,
		KScanAllByLabelPropertyValue: 1.0,
		KScanAllByLabelPropertyRange: 1.0,
		KExpand:                      2.0,
		KExpandVariable:              3.0,
		KExpandBreadthFirst:          3.5,
		KConstructNamedPath:          1.0,
		KFilter:                      1.5,
		KEdgeUniquenessFilter:        1.2,
		KProduce:                     0.5,
		KAggregate:                   2.0,
		KOrderBy:                     2.5,
		KSkip:                        0.1,
		KLimit:                       0.1,
		KDistinct:                    1.5,
		KUnwind:                      0.5,
		KCreateNode:                  3.0,
		KCreateExpand:                4.0,
		KSetProperty:                 1.0,
		KRemoveLabels:                1.0,
		KDelete:                      2.0,
		KMerge:                       4.0,
		KOptional:                    1.0,
		KAccumulate:                  1.0,
		KCartesian:                   1.0,

		FilterMultiplier:         0.5,
		ExpandMultiplier:         2.5,
		ExpandVariableMultiplier: 4.0,
		DefaultUnwindCardinality: 10,
		DistinctMultiplier:       0.8,
	}
}

// Stats is what the planner needs from the index to estimate cardinality.
type Stats interface {
	VerticesCount(label, property string) (int, error)
	HasIndex(label, property string) bool
}

// Estimate is the result of folding a logical plan with a CostModel: total
// cost and the emitted row cardinality.
type Estimate struct {
	Cost        float64
	Cardinality float64
}

// Evaluate walks the tree from its leaves up, combining a pipeline
// op1 -> op2 as cost(op1) + cardinality(op1) * cost(op2), exactly the
// recurrence named for the planner's cost estimator.
func (m CostModel) Evaluate(n *Node, stats Stats) Estimate {
	if n == nil {
		return Estimate{Cost: 0, Cardinality: 1}
	}

	switch n.Kind {
	case Once:
		return Estimate{Cost: m.KOnce, Cardinality: 1}
	case Cartesian:
		left := m.Evaluate(n.Input, stats)
		right := m.Evaluate(n.Right, stats)
		return Estimate{
			Cost:        left.Cost + left.Cardinality*right.Cost*m.KCartesian,
			Cardinality: left.Cardinality * right.Cardinality,
		}
	case Merge:
		left := m.Evaluate(n.Input, stats)
		right := m.Evaluate(n.Right, stats)
		return Estimate{Cost: left.Cost + left.Cardinality*(right.Cost+m.KMerge), Cardinality: left.Cardinality}
	}

	input := m.Evaluate(n.Input, stats)
	ownCost, multiplier := m.ownCostAndMultiplier(n, input, stats)
	return Estimate{
		Cost:        input.Cost + input.Cardinality*ownCost,
		Cardinality: input.Cardinality * multiplier,
	}
}

// ownCostAndMultiplier computes, for a non-leaf/non-join operator, the
// per-input-row cost it adds and the factor by which it scales the row
// count flowing through it.
func (m CostModel) ownCostAndMultiplier(n *Node, input Estimate, stats Stats) (cost, multiplier float64) {
	switch n.Kind {
	case ScanAll:
		card := estimateOrOne(stats, "", "")
		return m.KScanAll * card, card
	case ScanAllByLabel:
		card := estimateOrOne(stats, n.Label, "")
		return m.KScanAllByLabel * card, card
	case ScanAllByLabelPropertyValue:
		// An equality lookup against an index is a point lookup: the
		// index's estimate is capped at cardinality 1.
		card := estimateOrOne(stats, n.Label, n.Property)
		if card > 1 {
			card = 1
		}
		return m.KScanAllByLabelPropertyValue * card, card
	case ScanAllByLabelPropertyRange:
		card := estimateOrOne(stats, n.Label, n.Property)
		return m.KScanAllByLabelPropertyRange * card, card
	case Expand:
		return m.KExpand, m.ExpandMultiplier
	case ExpandVariable:
		k := m.KExpandVariable
		if n.BreadthFirst {
			k = m.KExpandBreadthFirst
		}
		return k, m.ExpandVariableMultiplier
	case ConstructNamedPath:
		return m.KConstructNamedPath, 1
	case Filter:
		return m.KFilter, m.FilterMultiplier
	case EdgeUniquenessFilter:
		return m.KEdgeUniquenessFilter, m.FilterMultiplier
	case Produce:
		return m.KProduce, 1
	case Aggregate:
		return m.KAggregate, m.DistinctMultiplier
	case OrderBy:
		return m.KOrderBy, 1
	case Skip:
		return m.KSkip, 1
	case Limit:
		return m.KLimit, 1
	case Distinct:
		return m.KDistinct, m.DistinctMultiplier
	case Unwind:
		k := unwindCardinality(n, m.DefaultUnwindCardinality)
		return m.KUnwind, k
	case CreateNode:
		return m.KCreateNode, 1
	case CreateExpand:
		return m.KCreateExpand, 1
	case SetProperty, SetProperties, SetLabels, RemoveProperty, RemoveLabels:
		return m.KSetProperty, 1
	case Delete:
		return m.KDelete, 1
	case Optional:
		return m.KOptional, 1
	case Accumulate:
		return m.KAccumulate, 1
	default:
		return 0, 1
	}
}

func estimateOrOne(stats Stats, label, property string) float64 {
	if stats == nil {
		return 1
	}
	n, err := stats.VerticesCount(label, property)
	if err != nil || n <= 0 {
		return 1
	}
	return float64(n)
}

// unwindCardinality returns exactly the list literal's length, or the
// configured default for an expression whose size isn't known statically.
func unwindCardinality(n *Node, def float64) float64 {
	if n.ListExpr.Kind == cypher.ListLiteral {
		return float64(len(n.ListExpr.Args))
	}
	return def
}
