// Package value defines the typed values that flow through vertex/edge
// properties, execution frames, and the WAL. A single closed type keeps
// property storage, expression evaluation, and delta encoding all speaking
// the same vocabulary.
package value

import (
	"fmt"
	"sort"
)

// Kind discriminates the variant a TypedValue holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	ListKind
	MapKind
)

// TypedValue is a tagged union over the value types Cypher-like
// expressions and vertex/edge properties can hold. Only the field
// matching Kind is meaningful.
type TypedValue struct {
	Kind Kind
	B    bool
	I    int64
	F    float64
	S    string
	L    []TypedValue
	M    map[string]TypedValue
}

func NullValue() TypedValue           { return TypedValue{Kind: Null} }
func BoolValue(b bool) TypedValue     { return TypedValue{Kind: Bool, B: b} }
func IntValue(i int64) TypedValue     { return TypedValue{Kind: Int, I: i} }
func FloatValue(f float64) TypedValue { return TypedValue{Kind: Float, F: f} }
func StringValue(s string) TypedValue { return TypedValue{Kind: String, S: s} }
func ListValue(l []TypedValue) TypedValue {
	return TypedValue{Kind: ListKind, L: l}
}
func MapValue(m map[string]TypedValue) TypedValue {
	return TypedValue{Kind: MapKind, M: m}
}

func (v TypedValue) IsNull() bool { return v.Kind == Null }

// Truthy implements Cypher's notion of truthiness for WHERE predicates:
// only a boolean true is truthy; everything else, including null, is not.
func (v TypedValue) Truthy() bool {
	return v.Kind == Bool && v.B
}

func (v TypedValue) String() string {
	switch v.Kind {
	case Null:
		return "null"
	case Bool:
		return fmt.Sprintf("%t", v.B)
	case Int:
		return fmt.Sprintf("%d", v.I)
	case Float:
		return fmt.Sprintf("%g", v.F)
	case String:
		return v.S
	case ListKind:
		return fmt.Sprintf("%v", v.L)
	case MapKind:
		return fmt.Sprintf("%v", v.M)
	default:
		return "?"
	}
}

// Orderable reports whether two values belong to a type family that
// supports a total order (numbers compare across int/float; strings and
// bools compare only among themselves). Values that are not orderable fall
// into the index's degenerate bucket per spec.
func Orderable(a, b TypedValue) bool {
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	return a.Kind == b.Kind && (a.Kind == String || a.Kind == Bool)
}

func isNumeric(v TypedValue) bool { return v.Kind == Int || v.Kind == Float }

// Compare orders two orderable values: negative if a<b, 0 if equal,
// positive if a>b. Callers must check Orderable first.
func Compare(a, b TypedValue) int {
	switch {
	case isNumeric(a) && isNumeric(b):
		af, bf := asFloat(a), asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case a.Kind == String:
		return sortCompareString(a.S, b.S)
	case a.Kind == Bool:
		if a.B == b.B {
			return 0
		}
		if !a.B {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func asFloat(v TypedValue) float64 {
	if v.Kind == Int {
		return float64(v.I)
	}
	return v.F
}

func sortCompareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports deep equality between two typed values, used by equality
// predicates and index point lookups.
func Equal(a, b TypedValue) bool {
	if a.Kind != b.Kind {
		if isNumeric(a) && isNumeric(b) {
			return asFloat(a) == asFloat(b)
		}
		return false
	}
	switch a.Kind {
	case Null:
		return true
	case Bool:
		return a.B == b.B
	case Int:
		return a.I == b.I
	case Float:
		return a.F == b.F
	case String:
		return a.S == b.S
	case ListKind:
		if len(a.L) != len(b.L) {
			return false
		}
		for i := range a.L {
			if !Equal(a.L[i], b.L[i]) {
				return false
			}
		}
		return true
	case MapKind:
		if len(a.M) != len(b.M) {
			return false
		}
		for k, av := range a.M {
			bv, ok := b.M[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SortedKeys returns a map's keys in sorted order, used wherever a
// deterministic iteration over a property map is needed (encoding,
// display).
func SortedKeys(m map[string]TypedValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
