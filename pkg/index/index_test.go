package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func TestLabelIndexAddRemoveCount(t *testing.T) {
	idx := NewLabelIndex()
	g1, g2 := gid.New(1, 1), gid.New(1, 2)
	idx.Add("Person", g1)
	idx.Add("Person", g2)
	require.Equal(t, 2, idx.Count("Person"))

	idx.Remove("Person", g1)
	require.Equal(t, 1, idx.Count("Person"))
	require.Equal(t, []gid.Gid{g2}, idx.Lookup("Person"))
}

func TestPropertyIndexPointAndRange(t *testing.T) {
	idx := NewPropertyIndex()
	for i := 0; i < 20; i++ {
		idx.Add(value.IntValue(int64(i)), gid.New(1, uint64(i)))
	}

	require.Len(t, idx.PointLookup(value.IntValue(5)), 1)

	// upper-bound 12 inclusive, no lower bound -> 13 entries (0..12)
	got := idx.RangeScan(Bound{}, Bound{Present: true, Value: value.IntValue(12), Inclusive: true})
	require.Len(t, got, 13)

	got = idx.RangeScan(Bound{Present: true, Value: value.IntValue(5), Inclusive: false}, Bound{})
	require.Len(t, got, 14) // 6..19
}

func TestPropertyIndexDegenerateBucketEmptyRange(t *testing.T) {
	idx := NewPropertyIndex()
	g := gid.New(1, 1)
	idx.Add(value.ListValue([]value.TypedValue{value.IntValue(1)}), g)

	require.Len(t, idx.PointLookup(value.ListValue([]value.TypedValue{value.IntValue(1)})), 1)
	require.Empty(t, idx.RangeScan(Bound{}, Bound{}))
}

func TestPropertyIndexRemove(t *testing.T) {
	idx := NewPropertyIndex()
	g1, g2 := gid.New(1, 1), gid.New(1, 2)
	idx.Add(value.IntValue(1), g1)
	idx.Add(value.IntValue(2), g2)
	idx.Remove(value.IntValue(1), g1)
	require.Empty(t, idx.PointLookup(value.IntValue(1)))
	require.Len(t, idx.PointLookup(value.IntValue(2)), 1)
}

func TestSchemaCardinalityScenario(t *testing.T) {
	// 100 vertices, 30 labeled, 20 with the property set: the §8 index
	// cardinality scenario.
	s := NewSchema()
	s.SetTotalVertices(100)

	rows := make([]ScanRow, 0, 30)
	for i := 0; i < 30; i++ {
		row := ScanRow{Gid: gid.New(1, uint64(i)), Labels: []string{"Person"}, Properties: map[string]value.TypedValue{}}
		if i < 20 {
			row.Properties["age"] = value.IntValue(int64(i))
		}
		rows = append(rows, row)
		s.Labels().Add("Person", row.Gid)
	}

	s.BuildIndex("Person", "age", func() []ScanRow { return rows })

	total, err := s.VerticesCount("", "")
	require.NoError(t, err)
	require.Equal(t, 100, total)

	labeled, err := s.VerticesCount("Person", "")
	require.NoError(t, err)
	require.Equal(t, 30, labeled)

	withAge, err := s.VerticesCount("Person", "age")
	require.NoError(t, err)
	require.Equal(t, 20, withAge)
}
