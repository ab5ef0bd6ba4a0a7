// Package index implements the label index and label-property range index
// that back the planner's scan-operator selection and cardinality
// estimates.
package index

import (
	"sync"

	"github.com/arefrazavi/memgraph/pkg/gid"
)

// LabelIndex maps each label to the set of vertex Gids carrying it at some
// committed version. It is maintained incrementally as labels are added or
// removed, as vertices are inserted, and as vertices are deleted; garbage
// collection does not touch it.
type LabelIndex struct {
	mu   sync.RWMutex
	byLabel map[string]map[gid.Gid]struct{}
}

// NewLabelIndex creates an empty label index.
func NewLabelIndex() *LabelIndex {
	return &LabelIndex{byLabel: make(map[string]map[gid.Gid]struct{})}
}

// Add records that g carries label.
func (idx *LabelIndex) Add(label string, g gid.Gid) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.byLabel[label]
	if !ok {
		set = make(map[gid.Gid]struct{})
		idx.byLabel[label] = set
	}
	set[g] = struct{}{}
}

// Remove forgets that g carries label (used on remove_label and on vertex
// deletion).
func (idx *LabelIndex) Remove(label string, g gid.Gid) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if set, ok := idx.byLabel[label]; ok {
		delete(set, g)
		if len(set) == 0 {
			delete(idx.byLabel, label)
		}
	}
}

// Lookup returns every Gid recorded under label.
func (idx *LabelIndex) Lookup(label string) []gid.Gid {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := idx.byLabel[label]
	out := make([]gid.Gid, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out
}

// Count returns VerticesCount(label): the number of vertices recorded
// under label. Used directly by the planner's cardinality estimator.
func (idx *LabelIndex) Count(label string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byLabel[label])
}
