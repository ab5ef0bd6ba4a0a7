package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/cypher"
)

// noStats reports no index and no cardinality estimate for anything,
// so every scan translates to the plain ScanAll/ScanAllByLabel fallback
// regardless of cost — translate_test.go is about plan shape, not costing.
type noStats struct{}

func (noStats) VerticesCount(label, property string) (int, error) { return 0, nil }
func (noStats) HasIndex(label, property string) bool              { return false }

func translate(t *testing.T, query string) *Node {
	t.Helper()
	q, err := cypher.Parse(query)
	require.NoError(t, err)
	plan, err := Translate(q, noStats{})
	require.NoError(t, err)
	return plan
}

func TestTranslateCreateProducesCreateNode(t *testing.T) {
	plan := translate(t, `CREATE (n:Person {name: "Ada"})`)
	require.Equal(t, CreateNode, plan.Kind)
	require.Equal(t, []string{"Person"}, plan.NewLabels)
	require.Equal(t, "n", plan.OutputSymbol)
	require.Equal(t, Once, plan.Input.Kind)
}

func TestTranslateMatchReturnProducesScanAndProduce(t *testing.T) {
	plan := translate(t, `MATCH (n:Person) RETURN n.name AS name`)
	require.Equal(t, Produce, plan.Kind)
	require.Len(t, plan.Projections, 1)
	require.Equal(t, "name", plan.Projections[0].Symbol)

	scan := plan.Input
	require.Equal(t, ScanAllByLabel, scan.Kind)
	require.Equal(t, "Person", scan.Label)
}

func TestTranslateWhereAddsFilterAboveScan(t *testing.T) {
	plan := translate(t, `MATCH (n:Person) WHERE n.age >= 18 RETURN n`)
	require.Equal(t, Produce, plan.Kind)
	require.Equal(t, Filter, plan.Input.Kind)
	require.Equal(t, ScanAllByLabel, plan.Input.Input.Kind)
}

func TestTranslateCountStarProducesAggregate(t *testing.T) {
	plan := translate(t, `MATCH (n:Person) RETURN count(*) AS total`)
	require.Equal(t, Aggregate, plan.Kind)
	require.Len(t, plan.Aggregations, 1)
	require.Equal(t, "total", plan.Aggregations[0].Symbol)
}

func TestTranslateDeleteWrapsPriorPlan(t *testing.T) {
	plan := translate(t, `MATCH (n:Person) DETACH DELETE n`)
	require.Equal(t, Delete, plan.Kind)
	require.True(t, plan.Detach)
	require.Equal(t, []string{"n"}, plan.DeleteSyms)
}

func TestTranslateUnwindBindsSymbol(t *testing.T) {
	plan := translate(t, `UNWIND [1, 2, 3] AS x RETURN x`)
	require.Equal(t, Produce, plan.Kind)
	require.Equal(t, Unwind, plan.Input.Kind)
	require.Equal(t, "x", plan.Input.AsSymbol)
}

func TestTranslateWithAccumulatesBeforeNextClause(t *testing.T) {
	plan := translate(t, `MATCH (n:Person) WITH n AS m RETURN m`)
	require.Equal(t, Produce, plan.Kind)
	require.Equal(t, Accumulate, plan.Input.Kind)
}

func TestTranslateOrderBySkipLimitStackAboveProduce(t *testing.T) {
	plan := translate(t, `MATCH (n:Person) RETURN n.name AS name ORDER BY name SKIP 1 LIMIT 10`)
	require.Equal(t, Limit, plan.Kind)
	require.Equal(t, Skip, plan.Input.Kind)
	require.Equal(t, OrderBy, plan.Input.Input.Kind)
	require.Equal(t, Produce, plan.Input.Input.Input.Kind)
}

func TestTranslateUnknownClauseKindErrors(t *testing.T) {
	_, err := Translate(cypher.Query{Clauses: []cypher.Clause{{Kind: cypher.ClauseKind(999)}}}, noStats{})
	require.Error(t, err)
}
