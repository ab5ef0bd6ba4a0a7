package cypher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	q, err := Parse(`MATCH (n:Person) WHERE n.age > 30 RETURN n.name AS name ORDER BY name SKIP 1 LIMIT 10`)
	require.NoError(t, err)
	require.Len(t, q.Clauses, 2)

	match := q.Clauses[0]
	require.Equal(t, CMatch, match.Kind)
	require.Len(t, match.Patterns, 1)
	require.Equal(t, "n", match.Patterns[0].Nodes[0].Variable)
	require.Equal(t, []string{"Person"}, match.Patterns[0].Nodes[0].Labels)
	require.Equal(t, BinaryOp, match.Where.Kind)
	require.Equal(t, ">", match.Where.Op)

	ret := q.Clauses[1]
	require.Equal(t, CReturn, ret.Kind)
	require.Len(t, ret.Items, 1)
	require.Equal(t, "name", ret.Items[0].As)
	require.Len(t, ret.OrderBy, 1)
	require.NotNil(t, ret.Skip)
	require.NotNil(t, ret.Limit)
}

func TestParseRelationshipPattern(t *testing.T) {
	q, err := Parse(`MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a, b`)
	require.NoError(t, err)
	match := q.Clauses[0]
	elem := match.Patterns[0]
	require.Len(t, elem.Nodes, 2)
	require.Len(t, elem.Rels, 1)
	require.Equal(t, Out, elem.Rels[0].Direction)
	require.Equal(t, []string{"KNOWS"}, elem.Rels[0].Types)
}

func TestParseCreateSetDelete(t *testing.T) {
	q, err := Parse(`CREATE (n:Person {name: "Ada", age: 36})`)
	require.NoError(t, err)
	require.Equal(t, CCreate, q.Clauses[0].Kind)
	require.Equal(t, "Ada", q.Clauses[0].Patterns[0].Nodes[0].Properties["name"].Value.S)

	q, err = Parse(`MATCH (n:Person) SET n.age = n.age + 1, n:Senior`)
	require.NoError(t, err)
	setClause := q.Clauses[1]
	require.Equal(t, CSet, setClause.Kind)
	require.Len(t, setClause.SetItems, 2)

	q, err = Parse(`MATCH (n:Person) DETACH DELETE n`)
	require.NoError(t, err)
	del := q.Clauses[1]
	require.True(t, del.Detach)
	require.Equal(t, []string{"n"}, del.DeleteVars)
}

func TestParseUnwindAndWith(t *testing.T) {
	q, err := Parse(`UNWIND [1, 2, 3] AS x WITH x WHERE x > 1 RETURN x`)
	require.NoError(t, err)
	require.Equal(t, CUnwind, q.Clauses[0].Kind)
	require.Equal(t, "x", q.Clauses[0].UnwindAs)
	require.Len(t, q.Clauses[0].UnwindList.Args, 3)
	require.Equal(t, CWith, q.Clauses[1].Kind)
}

func TestParseVariableLengthExpand(t *testing.T) {
	q, err := Parse(`MATCH (a)-[r:KNOWS*1..3]->(b) RETURN b`)
	require.NoError(t, err)
	rel := q.Clauses[0].Patterns[0].Rels[0]
	require.True(t, rel.Variable_)
	require.Equal(t, 1, rel.MinHops)
	require.Equal(t, 3, rel.MaxHops)
}
