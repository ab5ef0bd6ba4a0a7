package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/cypher"
)

type fakeStats struct {
	totals  map[string]int
	indexed map[string]bool
}

func (f fakeStats) VerticesCount(label, property string) (int, error) {
	n, ok := f.totals[fmt.Sprintf("%s\x00%s", label, property)]
	if !ok {
		return 0, fmt.Errorf("no stat for %s.%s", label, property)
	}
	return n, nil
}

func (f fakeStats) HasIndex(label, property string) bool {
	return f.indexed[fmt.Sprintf("%s\x00%s", label, property)]
}

// TestIndexCardinalityScenario reproduces the §8 scenario: 100 vertices,
// 30 labeled Person, 20 of those with age set.
func TestIndexCardinalityScenario(t *testing.T) {
	stats := fakeStats{
		totals: map[string]int{
			"\x00":           100,
			"Person\x00":     30,
			"Person\x00age":  20,
		},
		indexed: map[string]bool{"Person\x00age": true},
	}
	m := DefaultCostModel()

	scanAll := &Node{Kind: ScanAll, Input: &Node{Kind: Once}}
	est := m.Evaluate(scanAll, stats)
	require.InDelta(t, m.KOnce+100*m.KScanAll, est.Cost, 1e-9)

	scanLabel := &Node{Kind: ScanAllByLabel, Label: "Person", Input: &Node{Kind: Once}}
	est = m.Evaluate(scanLabel, stats)
	require.InDelta(t, m.KOnce+30*m.KScanAllByLabel, est.Cost, 1e-9)

	scanValue := &Node{Kind: ScanAllByLabelPropertyValue, Label: "Person", Property: "age", Input: &Node{Kind: Once}}
	est = m.Evaluate(scanValue, stats)
	require.InDelta(t, m.KOnce+1*m.KScanAllByLabelPropertyValue, est.Cost, 1e-9)
}

// TestFilterMonotonicity is the §8 property: adding a Filter strictly
// decreases cardinality and strictly increases total cost.
func TestFilterMonotonicity(t *testing.T) {
	stats := fakeStats{totals: map[string]int{"\x00": 100}}
	m := DefaultCostModel()

	scan := &Node{Kind: ScanAll, Input: &Node{Kind: Once}}
	withoutFilter := m.Evaluate(scan, stats)

	filtered := &Node{Kind: Filter, Input: scan, Predicate: cypher.Expr{Kind: cypher.Literal}}
	withFilter := m.Evaluate(filtered, stats)

	require.Less(t, withFilter.Cardinality, withoutFilter.Cardinality)
	require.Greater(t, withFilter.Cost, withoutFilter.Cost)
}

func TestUnwindEmptyListCostsJustTheConstant(t *testing.T) {
	m := DefaultCostModel()
	once := &Node{Kind: Once}
	empty := &Node{Kind: Unwind, Input: once, ListExpr: cypher.Expr{Kind: cypher.ListLiteral}}
	est := m.Evaluate(empty, nil)
	require.Equal(t, float64(0), est.Cardinality)
	require.InDelta(t, m.KOnce+1*m.KUnwind, est.Cost, 1e-9)
}

func TestSelectScanPrefersEqualityOverRangeOverLabelOverFull(t *testing.T) {
	stats := fakeStats{
		totals: map[string]int{
			"\x00":          1000,
			"Person\x00":    100,
			"Person\x00age": 1,
		},
		indexed: map[string]bool{"Person\x00age": true},
	}

	n := SelectScan([]ScanCandidate{{Label: "Person", Property: "age", HasEquality: true}}, stats)
	require.Equal(t, ScanAllByLabelPropertyValue, n.Kind)

	n = SelectScan([]ScanCandidate{{Label: "Person", Property: "unindexed", HasRange: true}}, stats)
	require.Equal(t, ScanAllByLabel, n.Kind)

	n = SelectScan([]ScanCandidate{{Label: "Person"}}, stats)
	require.Equal(t, ScanAllByLabel, n.Kind)

	n = SelectScan(nil, stats)
	require.Equal(t, ScanAll, n.Kind)
}
