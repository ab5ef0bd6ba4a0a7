package index

import (
	"sort"
	"sync"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Bound describes one side of a range scan: whether it is present at all,
// its value, and whether it is inclusive.
type Bound struct {
	Present   bool
	Value     value.TypedValue
	Inclusive bool
}

// entry is one (value, gid) pair tracked by a PropertyIndex, kept in a
// slice sorted by Value so range scans are a pair of binary searches.
type entry struct {
	value value.TypedValue
	gid   gid.Gid
}

// PropertyIndex is the ordered map property_value → set<vertex_gid> for one
// (label, property) pair declared by BuildIndex. Values with no defined
// total order (mixed types, lists, maps) land in a separate degenerate
// bucket that participates in point lookup but never in a range scan, per
// spec.
type PropertyIndex struct {
	mu         sync.RWMutex
	sorted     []entry          // ordered by value, for orderable values only
	degenerate map[string][]gid.Gid // keyed by a non-orderable value's string form
	// locations lets Remove find an entry in O(log n) without a linear
	// scan, mirroring the reference range index's node-to-position map.
	locations map[gid.Gid]int
}

// NewPropertyIndex creates an empty property index.
func NewPropertyIndex() *PropertyIndex {
	return &PropertyIndex{
		degenerate: make(map[string][]gid.Gid),
		locations:  make(map[gid.Gid]int),
	}
}

// Add records that g carries the given property value.
func (idx *PropertyIndex) Add(v value.TypedValue, g gid.Gid) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !orderableKind(v) {
		key := v.String()
		idx.degenerate[key] = append(idx.degenerate[key], g)
		return
	}

	pos := sort.Search(len(idx.sorted), func(i int) bool {
		return value.Compare(idx.sorted[i].value, v) >= 0
	})
	idx.sorted = append(idx.sorted, entry{})
	copy(idx.sorted[pos+1:], idx.sorted[pos:])
	idx.sorted[pos] = entry{value: v, gid: g}
	idx.reindexFrom(pos)
}

// Remove forgets that g carries the given property value.
func (idx *PropertyIndex) Remove(v value.TypedValue, g gid.Gid) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !orderableKind(v) {
		key := v.String()
		list := idx.degenerate[key]
		for i, other := range list {
			if other == g {
				idx.degenerate[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(idx.degenerate[key]) == 0 {
			delete(idx.degenerate, key)
		}
		return
	}

	pos, ok := idx.locations[g]
	if !ok || pos >= len(idx.sorted) || idx.sorted[pos].gid != g {
		return
	}
	idx.sorted = append(idx.sorted[:pos], idx.sorted[pos+1:]...)
	delete(idx.locations, g)
	idx.reindexFrom(pos)
}

func (idx *PropertyIndex) reindexFrom(pos int) {
	for i := pos; i < len(idx.sorted); i++ {
		idx.locations[idx.sorted[i].gid] = i
	}
}

// PointLookup returns every Gid carrying exactly v, orderable or not.
func (idx *PropertyIndex) PointLookup(v value.TypedValue) []gid.Gid {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !orderableKind(v) {
		list := idx.degenerate[v.String()]
		out := make([]gid.Gid, len(list))
		copy(out, list)
		return out
	}

	lo := sort.Search(len(idx.sorted), func(i int) bool {
		return value.Compare(idx.sorted[i].value, v) >= 0
	})
	var out []gid.Gid
	for i := lo; i < len(idx.sorted) && value.Equal(idx.sorted[i].value, v); i++ {
		out = append(out, idx.sorted[i].gid)
	}
	return out
}

// RangeScan returns every Gid whose value falls within [lower, upper]
// (bounds optional, each independently inclusive/exclusive). A range scan
// with neither bound present degenerates to every orderable entry — the
// full label+property scan boundary behavior spec calls for. Non-orderable
// values never participate: the degenerate bucket is empty for a range
// scan regardless of bounds.
func (idx *PropertyIndex) RangeScan(lower, upper Bound) []gid.Gid {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	start := 0
	if lower.Present {
		start = sort.Search(len(idx.sorted), func(i int) bool {
			c := value.Compare(idx.sorted[i].value, lower.Value)
			if lower.Inclusive {
				return c >= 0
			}
			return c > 0
		})
	}

	end := len(idx.sorted)
	if upper.Present {
		end = sort.Search(len(idx.sorted), func(i int) bool {
			c := value.Compare(idx.sorted[i].value, upper.Value)
			if upper.Inclusive {
				return c > 0
			}
			return c >= 0
		})
	}

	if start >= end {
		return nil
	}
	out := make([]gid.Gid, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, idx.sorted[i].gid)
	}
	return out
}

// Count is VerticesCount(label, property): the exact cardinality for small
// tables, which is all this index ever materializes.
func (idx *PropertyIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := len(idx.sorted)
	for _, list := range idx.degenerate {
		n += len(list)
	}
	return n
}

func orderableKind(v value.TypedValue) bool {
	switch v.Kind {
	case value.Int, value.Float, value.String, value.Bool:
		return true
	default:
		return false
	}
}
