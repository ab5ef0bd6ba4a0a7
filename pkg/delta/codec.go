package delta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Encode serializes d into a flat binary form. The WAL wraps this with a
// uint32 length prefix, so the payload itself never needs to know its own
// length.
func Encode(d StateDelta) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(d.Tag))
	putUint64(&buf, d.TxID)
	putAddress(&buf, d.Vertex)
	putAddress(&buf, d.Edge)
	putStrings(&buf, d.Labels)
	putString(&buf, d.Property)
	putValue(&buf, d.Value)
	putPropMap(&buf, d.Properties)
	putAddress(&buf, d.EdgeEndpoints.Edge)
	putAddress(&buf, d.EdgeEndpoints.Other)
	putString(&buf, d.EdgeEndpoints.Type)
	putBool(&buf, d.CheckEmpty)
	putString(&buf, d.IndexLabel)
	putString(&buf, d.IndexProperty)
	return buf.Bytes()
}

// Decode parses the bytes Encode produced.
func Decode(b []byte) (StateDelta, error) {
	r := bytes.NewReader(b)
	var d StateDelta

	tagByte, err := r.ReadByte()
	if err != nil {
		return d, fmt.Errorf("delta: read tag: %w", err)
	}
	d.Tag = Tag(tagByte)

	if d.TxID, err = getUint64(r); err != nil {
		return d, fmt.Errorf("delta: read tx id: %w", err)
	}
	if d.Vertex, err = getAddress(r); err != nil {
		return d, fmt.Errorf("delta: read vertex: %w", err)
	}
	if d.Edge, err = getAddress(r); err != nil {
		return d, fmt.Errorf("delta: read edge: %w", err)
	}
	if d.Labels, err = getStrings(r); err != nil {
		return d, fmt.Errorf("delta: read labels: %w", err)
	}
	if d.Property, err = getString(r); err != nil {
		return d, fmt.Errorf("delta: read property: %w", err)
	}
	if d.Value, err = getValue(r); err != nil {
		return d, fmt.Errorf("delta: read value: %w", err)
	}
	if d.Properties, err = getPropMap(r); err != nil {
		return d, fmt.Errorf("delta: read properties: %w", err)
	}
	if d.EdgeEndpoints.Edge, err = getAddress(r); err != nil {
		return d, fmt.Errorf("delta: read edge ref edge: %w", err)
	}
	if d.EdgeEndpoints.Other, err = getAddress(r); err != nil {
		return d, fmt.Errorf("delta: read edge ref other: %w", err)
	}
	if d.EdgeEndpoints.Type, err = getString(r); err != nil {
		return d, fmt.Errorf("delta: read edge ref type: %w", err)
	}
	if d.CheckEmpty, err = getBool(r); err != nil {
		return d, fmt.Errorf("delta: read check_empty: %w", err)
	}
	if d.IndexLabel, err = getString(r); err != nil {
		return d, fmt.Errorf("delta: read index label: %w", err)
	}
	if d.IndexProperty, err = getString(r); err != nil {
		return d, fmt.Errorf("delta: read index property: %w", err)
	}
	return d, nil
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func putAddress(buf *bytes.Buffer, a gid.Address) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(a.Worker))
	buf.Write(tmp[:])
	putUint64(buf, uint64(a.Gid))
}

func getAddress(r *bytes.Reader) (gid.Address, error) {
	var tmp [2]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return gid.Address{}, err
	}
	g, err := getUint64(r)
	if err != nil {
		return gid.Address{}, err
	}
	return gid.Address{Worker: gid.WorkerID(binary.BigEndian.Uint16(tmp[:])), Gid: gid.Gid(g)}, nil
}

func putBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func getBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func putString(buf *bytes.Buffer, s string) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(s)))
	buf.Write(tmp[:])
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(tmp[:])
	s := make([]byte, n)
	if _, err := io.ReadFull(r, s); err != nil {
		return "", err
	}
	return string(s), nil
}

func putStrings(buf *bytes.Buffer, ss []string) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(ss)))
	buf.Write(tmp[:])
	for _, s := range ss {
		putString(buf, s)
	}
}

func getStrings(r *bytes.Reader) ([]string, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(tmp[:])
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := getString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func putValue(buf *bytes.Buffer, v value.TypedValue) {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case value.Bool:
		putBool(buf, v.B)
	case value.Int:
		putUint64(buf, uint64(v.I))
	case value.Float:
		putUint64(buf, math.Float64bits(v.F))
	case value.String:
		putString(buf, v.S)
	case value.ListKind:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.L)))
		buf.Write(tmp[:])
		for _, item := range v.L {
			putValue(buf, item)
		}
	case value.MapKind:
		putPropMap(buf, v.M)
	}
}

func getValue(r *bytes.Reader) (value.TypedValue, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return value.TypedValue{}, err
	}
	kind := value.Kind(kindByte)
	switch kind {
	case value.Null:
		return value.NullValue(), nil
	case value.Bool:
		b, err := getBool(r)
		return value.BoolValue(b), err
	case value.Int:
		i, err := getUint64(r)
		return value.IntValue(int64(i)), err
	case value.Float:
		bits, err := getUint64(r)
		return value.FloatValue(math.Float64frombits(bits)), err
	case value.String:
		s, err := getString(r)
		return value.StringValue(s), err
	case value.ListKind:
		var tmp [4]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return value.TypedValue{}, err
		}
		n := binary.BigEndian.Uint32(tmp[:])
		items := make([]value.TypedValue, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := getValue(r)
			if err != nil {
				return value.TypedValue{}, err
			}
			items = append(items, item)
		}
		return value.ListValue(items), nil
	case value.MapKind:
		m, err := getPropMap(r)
		return value.MapValue(m), err
	default:
		return value.TypedValue{}, fmt.Errorf("delta: unknown value kind %d", kindByte)
	}
}

func putPropMap(buf *bytes.Buffer, m map[string]value.TypedValue) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(m)))
	buf.Write(tmp[:])
	for _, k := range value.SortedKeys(m) {
		putString(buf, k)
		putValue(buf, m[k])
	}
}

func getPropMap(r *bytes.Reader) (map[string]value.TypedValue, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(tmp[:])
	if n == 0 {
		return nil, nil
	}
	m := make(map[string]value.TypedValue, n)
	for i := uint32(0); i < n; i++ {
		k, err := getString(r)
		if err != nil {
			return nil, err
		}
		v, err := getValue(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
