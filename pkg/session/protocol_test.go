package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/value"
)

func TestClientExecuteRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go e.Serve(ln)

	client, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Execute(`CREATE (n:Person {name: "Ada"})`, nil)
	require.NoError(t, err)

	result, err := client.Execute(`MATCH (n:Person) RETURN n.name AS name`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	require.Equal(t, value.StringValue("Ada"), result.Rows[0][0])
}

func TestClientExecutePropagatesServerError(t *testing.T) {
	e := newTestEngine(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go e.Serve(ln)

	client, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Execute(`NOT CYPHER AT ALL (((`, nil)
	require.Error(t, err)
}
