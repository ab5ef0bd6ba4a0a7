package planner

import "github.com/arefrazavi/memgraph/pkg/cypher"

// ScanCandidate describes one way a bound vertex's constraints could be
// satisfied: a label alone, a label plus an equality on an indexed
// property, or a label plus a range on an indexed property. Equality takes
// EqualityExpr; range takes Lower/Upper (either optional).
type ScanCandidate struct {
	Label        string
	Property     string
	EqualityExpr cypher.Expr
	HasEquality  bool
	Lower        Bound
	Upper        Bound
	HasRange     bool
}

// SelectScan implements the scan-operator selection rule: a label plus an
// equality on an indexed property wins outright; absent that, a label plus
// an inequality range on an indexed property; absent that, a label alone;
// absent that, a full ScanAll. When several candidates qualify for the
// same tier, the one with the lowest estimated cardinality is chosen,
// ties broken by label name (stand-in for label id, since labels are
// interned by the time they reach the planner in a real cluster).
func SelectScan(candidates []ScanCandidate, stats Stats) *Node {
	if len(candidates) == 0 {
		return &Node{Kind: ScanAll}
	}

	if n := bestOfTier(candidates, stats, func(c ScanCandidate) bool { return c.HasEquality && hasIndex(stats, c.Label, c.Property) },
		func(c ScanCandidate) *Node {
			return &Node{Kind: ScanAllByLabelPropertyValue, Label: c.Label, Property: c.Property, EqualityExpr: c.EqualityExpr}
		}); n != nil {
		return n
	}

	if n := bestOfTier(candidates, stats, func(c ScanCandidate) bool { return c.HasRange && hasIndex(stats, c.Label, c.Property) },
		func(c ScanCandidate) *Node {
			return &Node{Kind: ScanAllByLabelPropertyRange, Label: c.Label, Property: c.Property, Lower: c.Lower, Upper: c.Upper}
		}); n != nil {
		return n
	}

	if n := bestOfTier(candidates, stats, func(c ScanCandidate) bool { return c.Label != "" },
		func(c ScanCandidate) *Node {
			return &Node{Kind: ScanAllByLabel, Label: c.Label}
		}); n != nil {
		return n
	}

	return &Node{Kind: ScanAll}
}

func hasIndex(stats Stats, label, property string) bool {
	if stats == nil {
		return false
	}
	return stats.HasIndex(label, property)
}

func bestOfTier(candidates []ScanCandidate, stats Stats, qualifies func(ScanCandidate) bool, build func(ScanCandidate) *Node) *Node {
	var best *ScanCandidate
	var bestCard float64
	for i := range candidates {
		c := candidates[i]
		if !qualifies(c) {
			continue
		}
		card := estimateOrOne(stats, c.Label, c.Property)
		if best == nil || card < bestCard || (card == bestCard && c.Label < best.Label) {
			cCopy := c
			best = &cCopy
			bestCard = card
		}
	}
	if best == nil {
		return nil
	}
	return build(*best)
}
