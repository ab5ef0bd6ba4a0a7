package index

import (
	"fmt"
	"sync"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Schema owns every label index and label-property index for one graph. It
// is the object BuildIndex, the planner's scan-operator selection, and
// cardinality estimation all talk to.
type Schema struct {
	mu         sync.RWMutex
	labels     *LabelIndex
	properties map[string]*PropertyIndex // keyed by "label\x00property"

	totalVertices int64
}

// NewSchema creates an empty schema with just the always-present label
// index; label-property indexes are created on demand by BuildIndex.
func NewSchema() *Schema {
	return &Schema{
		labels:     NewLabelIndex(),
		properties: make(map[string]*PropertyIndex),
	}
}

func propKey(label, property string) string {
	return label + "\x00" + property
}

// HasIndex reports whether BuildIndex has been called for (label, property).
func (s *Schema) HasIndex(label, property string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.properties[propKey(label, property)]
	return ok
}

// BuildIndex scans vertices (via the scanAll callback, the current
// committed vertex set) and populates a fresh label-property index. The
// caller is responsible for also logging the BUILD_INDEX delta so recovery
// rebuilds it.
func (s *Schema) BuildIndex(label, property string, scanAll func() []ScanRow) *PropertyIndex {
	idx := NewPropertyIndex()
	for _, row := range scanAll() {
		if !contains(row.Labels, label) {
			continue
		}
		if v, ok := row.Properties[property]; ok {
			idx.Add(v, row.Gid)
		}
	}

	s.mu.Lock()
	s.properties[propKey(label, property)] = idx
	s.mu.Unlock()
	return idx
}

// ScanRow is the minimal vertex projection BuildIndex needs: enough to
// decide label membership and read one property, without coupling this
// package to pkg/graph's full Vertex type.
type ScanRow struct {
	Gid        gid.Gid
	Labels     []string
	Properties map[string]value.TypedValue
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PropertyIndexFor returns the index for (label, property), if BuildIndex
// has run for that pair.
func (s *Schema) PropertyIndexFor(label, property string) (*PropertyIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.properties[propKey(label, property)]
	return idx, ok
}

// Labels returns the always-present label index.
func (s *Schema) Labels() *LabelIndex { return s.labels }

// VerticesCount implements the cardinality estimation spec names:
// VerticesCount() for the full vertex set, VerticesCount(label) via the
// label index, and VerticesCount(label, property) via a label-property
// index when one exists.
func (s *Schema) VerticesCount(label, property string) (int, error) {
	switch {
	case label == "" && property == "":
		s.mu.RLock()
		defer s.mu.RUnlock()
		return int(s.totalVertices), nil
	case property == "":
		return s.labels.Count(label), nil
	default:
		idx, ok := s.PropertyIndexFor(label, property)
		if !ok {
			return 0, fmt.Errorf("index: no label-property index for %s.%s", label, property)
		}
		return idx.Count(), nil
	}
}

// SetTotalVertices updates the full-graph cardinality estimate used by
// ScanAll's cost, e.g. after a bulk load or recovery.
func (s *Schema) SetTotalVertices(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalVertices = n
}

// IncTotalVertices adjusts the full-graph estimate by delta (positive on
// insert, negative on delete).
func (s *Schema) IncTotalVertices(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalVertices += delta
}
