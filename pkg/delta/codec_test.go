package delta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []StateDelta{
		{Tag: TransactionBegin, TxID: 1},
		{Tag: TransactionCommit, TxID: 1},
		{
			Tag:    CreateVertex,
			TxID:   2,
			Vertex: gid.Address{Worker: 1, Gid: gid.New(1, 5)},
			Labels: []string{"Person", "Employee"},
			Properties: map[string]value.TypedValue{
				"name": value.StringValue("Ada"),
				"age":  value.IntValue(37),
				"tags": value.ListValue([]value.TypedValue{value.StringValue("a"), value.StringValue("b")}),
			},
		},
		{
			Tag:      SetPropertyVertex,
			TxID:     3,
			Vertex:   gid.Address{Worker: 2, Gid: gid.New(2, 9)},
			Property: "score",
			Value:    value.FloatValue(3.14),
		},
		{
			Tag:  CreateEdge,
			TxID: 4,
			Edge: gid.Address{Worker: 1, Gid: gid.New(1, 1)},
			EdgeEndpoints: EdgeRef{
				Edge:  gid.Address{Worker: 1, Gid: gid.New(1, 1)},
				Other: gid.Address{Worker: 2, Gid: gid.New(2, 7)},
				Type:  "KNOWS",
			},
		},
		{
			Tag:        RemoveVertex,
			TxID:       5,
			Vertex:     gid.Address{Worker: 3, Gid: gid.New(3, 2)},
			CheckEmpty: true,
		},
		{
			Tag:           BuildIndex,
			TxID:          6,
			IndexLabel:    "Person",
			IndexProperty: "age",
		},
	}

	for _, want := range cases {
		encoded := Encode(want)
		got, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, want.Tag, got.Tag)
		require.Equal(t, want.TxID, got.TxID)
		require.Equal(t, want.Vertex, got.Vertex)
		require.Equal(t, want.Edge, got.Edge)
		require.Equal(t, want.Labels, got.Labels)
		require.Equal(t, want.Property, got.Property)
		require.True(t, value.Equal(want.Value, got.Value))
		require.Equal(t, len(want.Properties), len(got.Properties))
		for k, v := range want.Properties {
			require.True(t, value.Equal(v, got.Properties[k]))
		}
		require.Equal(t, want.EdgeEndpoints, got.EdgeEndpoints)
		require.Equal(t, want.CheckEmpty, got.CheckEmpty)
		require.Equal(t, want.IndexLabel, got.IndexLabel)
		require.Equal(t, want.IndexProperty, got.IndexProperty)
	}
}

func TestTagString(t *testing.T) {
	require.Equal(t, "CREATE_VERTEX", CreateVertex.String())
	require.True(t, TransactionCommit.IsTransactionEnd())
	require.False(t, CreateVertex.IsTransactionEnd())
}
