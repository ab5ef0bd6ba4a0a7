package planner

import (
	"fmt"
	"strings"

	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/errs"
)

// Translate folds a parsed query's clauses into one logical plan, threading
// a rolling set of symbols already bound by an earlier clause so a pattern
// that reuses a variable extends from it instead of re-scanning.
//
// Each pattern variable is scanned at most once per query: a MATCH whose
// first node names a variable bound by an earlier clause expands directly
// off the existing plan rather than cross-joining a fresh scan, but two
// independent patterns within (or across) MATCH clauses still combine by
// Cartesian product, left to a later Filter (from WHERE, or an explicit
// join predicate) to cut the product down. Full constraint push-down into
// scan predicates is left undone; WHERE always lands as a Filter above the
// pattern it decorates.
func Translate(q cypher.Query, stats Stats) (*Node, error) {
	plan := &Node{Kind: Once}
	bound := map[string]bool{}

	for _, clause := range q.Clauses {
		var err error
		switch clause.Kind {
		case cypher.CMatch:
			plan, err = translateMatch(plan, clause, bound, stats)
		case cypher.CCreate:
			plan, err = translateCreate(plan, clause, bound, stats)
		case cypher.CMerge:
			plan, err = translateMerge(plan, clause, bound, stats)
		case cypher.CSet:
			plan, err = translateSet(plan, clause, bound)
		case cypher.CDelete:
			plan = &Node{Kind: Delete, Input: plan, DeleteSyms: clause.DeleteVars, Detach: clause.Detach}
		case cypher.CRemove:
			plan, err = translateRemove(plan, clause, bound)
		case cypher.CUnwind:
			plan = &Node{Kind: Unwind, Input: plan, ListExpr: clause.UnwindList, AsSymbol: clause.UnwindAs}
			bound[clause.UnwindAs] = true
		case cypher.CWith:
			plan, err = translateProjection(plan, clause, bound)
			if err == nil {
				plan = &Node{Kind: Accumulate, Input: plan}
			}
		case cypher.CReturn:
			plan, err = translateProjection(plan, clause, bound)
		default:
			err = fmt.Errorf("%w: unsupported clause kind %d", errs.ErrQuery, clause.Kind)
		}
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// translateMatch extends plan with every pattern in clause, then applies
// WHERE (if any) as a trailing Filter.
func translateMatch(plan *Node, clause cypher.Clause, bound map[string]bool, stats Stats) (*Node, error) {
	for _, pe := range clause.Patterns {
		var err error
		plan, err = extendWithPattern(plan, pe, bound, stats)
		if err != nil {
			return nil, err
		}
	}
	if clause.Optional {
		plan = &Node{Kind: Optional, Input: plan, OptionalSymbols: patternSymbols(clause.Patterns)}
	}
	if !isEmptyExpr(clause.Where) {
		plan = &Node{Kind: Filter, Input: plan, Predicate: clause.Where}
	}
	return plan, nil
}

// extendWithPattern walks one path pattern: a scan (or, if its first node
// is already bound, a direct continuation) followed by one Expand per
// relationship, then any per-node property-map equality checks the scan
// candidate didn't already enforce.
func extendWithPattern(plan *Node, pe cypher.PatternElement, bound map[string]bool, stats Stats) (*Node, error) {
	if len(pe.Nodes) == 0 {
		return plan, nil
	}

	first := pe.Nodes[0]
	var cur *Node
	if bound[first.Variable] && first.Variable != "" {
		cur = plan
	} else {
		scan := buildScan(first, stats)
		if first.Variable != "" {
			bound[first.Variable] = true
		}
		if plan.Kind == Once {
			cur = scan
		} else {
			cur = &Node{Kind: Cartesian, Input: plan, Right: scan}
		}
	}

	prevVar := first.Variable
	var edgeSyms []string
	for i, rel := range pe.Rels {
		to := pe.Nodes[i+1]
		dir := translateDirection(rel.Direction)
		edgeType := ""
		if len(rel.Types) > 0 {
			edgeType = rel.Types[0]
		}
		if rel.Variable_ {
			cur = &Node{
				Kind: ExpandVariable, Input: cur,
				FromSymbol: prevVar, ToSymbol: to.Variable, EdgeSymbol: rel.Variable,
				Direction: dir, EdgeType: edgeType, MinHops: rel.MinHops, MaxHops: rel.MaxHops,
			}
		} else {
			cur = &Node{
				Kind: Expand, Input: cur,
				FromSymbol: prevVar, ToSymbol: to.Variable, EdgeSymbol: rel.Variable,
				Direction: dir, EdgeType: edgeType,
			}
		}
		if to.Variable != "" {
			bound[to.Variable] = true
		}
		if rel.Variable != "" {
			bound[rel.Variable] = true
			edgeSyms = append(edgeSyms, rel.Variable)
		}
		prevVar = to.Variable
	}

	if len(edgeSyms) > 1 {
		cur = &Node{Kind: EdgeUniquenessFilter, Input: cur, EdgeSymbols: edgeSyms}
	}

	// Property-map equality on every node pattern, re-checked here even for
	// the node the scan candidate already narrowed on, since a label-only
	// or full scan fallback wouldn't have enforced it.
	for _, np := range pe.Nodes {
		if pred := propsPredicate(np.Variable, np.Properties); pred != nil {
			cur = &Node{Kind: Filter, Input: cur, Predicate: *pred}
		}
	}
	return cur, nil
}

// buildScan picks the cheapest available scan for one node pattern via
// SelectScan, trying every label the pattern carries as a candidate.
func buildScan(np cypher.NodePattern, stats Stats) *Node {
	var candidates []ScanCandidate
	for _, label := range np.Labels {
		c := ScanCandidate{Label: label}
		for prop, expr := range np.Properties {
			if isConstant(expr) {
				c.Property = prop
				c.EqualityExpr = expr
				c.HasEquality = true
				break
			}
		}
		candidates = append(candidates, c)
	}
	n := SelectScan(candidates, stats)
	n.OutputSymbol = np.Variable
	return n
}

func isConstant(e cypher.Expr) bool {
	return e.Kind == cypher.Literal || e.Kind == cypher.Parameter
}

// propsPredicate folds a node pattern's inline property map into a
// conjunction of equality comparisons, or returns nil if there is none.
func propsPredicate(variable string, props map[string]cypher.Expr) *cypher.Expr {
	if len(props) == 0 {
		return nil
	}
	var conj cypher.Expr
	has := false
	for key, expr := range props {
		eq := cypher.Expr{
			Kind: cypher.BinaryOp, Op: "=",
			Left:  &cypher.Expr{Kind: cypher.Property, Target: variable, Key: key},
			Right: exprPtr(expr),
		}
		if !has {
			conj = eq
			has = true
			continue
		}
		conj = cypher.Expr{Kind: cypher.BinaryOp, Op: "AND", Left: exprPtr(conj), Right: exprPtr(eq)}
	}
	return &conj
}

func exprPtr(e cypher.Expr) *cypher.Expr {
	c := e
	return &c
}

func translateDirection(d cypher.Direction) Direction {
	switch d {
	case cypher.Out:
		return Out
	case cypher.In:
		return In
	default:
		return Both
	}
}

func isEmptyExpr(e cypher.Expr) bool {
	return e.Kind == cypher.Literal && e.Value.Kind == 0 && e.Op == "" && e.Name == "" && e.Target == ""
}

// patternSymbols lists every symbol a set of patterns would bind, for
// OPTIONAL MATCH's zero-row null fallback.
func patternSymbols(pes []cypher.PatternElement) []string {
	var syms []string
	for _, pe := range pes {
		for _, n := range pe.Nodes {
			if n.Variable != "" {
				syms = append(syms, n.Variable)
			}
		}
		for _, r := range pe.Rels {
			if r.Variable != "" {
				syms = append(syms, r.Variable)
			}
		}
	}
	return syms
}

// translateCreate builds one CreateNode per fresh node pattern and one
// CreateExpand per relationship, assuming (a deliberate simplification)
// that a relationship's endpoints are bound by the time CreateExpand runs
// — either by this same CREATE clause's node patterns or an earlier MATCH.
func translateCreate(plan *Node, clause cypher.Clause, bound map[string]bool, stats Stats) (*Node, error) {
	for _, pe := range clause.Patterns {
		for _, np := range pe.Nodes {
			if bound[np.Variable] {
				continue
			}
			plan = &Node{
				Kind: CreateNode, Input: plan,
				NewLabels: np.Labels, NewProps: np.Properties, OutputSymbol: np.Variable,
			}
			bound[np.Variable] = true
		}
		prevVar := ""
		if len(pe.Nodes) > 0 {
			prevVar = pe.Nodes[0].Variable
		}
		for i, rel := range pe.Rels {
			to := pe.Nodes[i+1]
			edgeType := ""
			if len(rel.Types) > 0 {
				edgeType = rel.Types[0]
			}
			plan = &Node{
				Kind: CreateExpand, Input: plan,
				FromSymbol: prevVar, ToSymbol: to.Variable, EdgeType: edgeType, EdgeSymbol: rel.Variable,
				NewProps: rel.Properties, Direction: translateDirection(rel.Direction),
			}
			if rel.Variable != "" {
				bound[rel.Variable] = true
			}
			prevVar = to.Variable
		}
	}
	return plan, nil
}

// translateMerge plans the MATCH side and the CREATE side of a MERGE
// pattern separately, joined by a Merge node: if the match side yields any
// row those pass through (decorated by ON MATCH SET), otherwise the create
// side runs once (decorated by ON CREATE SET). Best-effort: a MERGE whose
// pattern spans multiple path elements merges each independently rather
// than atomically as a whole.
func translateMerge(plan *Node, clause cypher.Clause, bound map[string]bool, stats Stats) (*Node, error) {
	matchBound := cloneBound(bound)
	var matchPlan *Node = &Node{Kind: Once}
	for _, pe := range clause.Patterns {
		var err error
		matchPlan, err = extendWithPattern(matchPlan, pe, matchBound, stats)
		if err != nil {
			return nil, err
		}
	}

	createBound := cloneBound(bound)
	createClause := cypher.Clause{Kind: cypher.CCreate, Patterns: clause.Patterns}
	createPlan, err := translateCreate(&Node{Kind: Once}, createClause, createBound, stats)
	if err != nil {
		return nil, err
	}

	merged := &Node{Kind: Merge, Input: matchPlan, Right: createPlan}
	if plan.Kind != Once {
		merged = &Node{Kind: Cartesian, Input: plan, Right: merged}
	}
	for k := range matchBound {
		bound[k] = true
	}

	out := merged
	for _, item := range clause.OnMatch {
		out = applySetItem(out, item)
	}
	for _, item := range clause.OnCreate {
		out = applySetItem(out, item)
	}
	return out, nil
}

func cloneBound(b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func translateSet(plan *Node, clause cypher.Clause, bound map[string]bool) (*Node, error) {
	for _, item := range clause.SetItems {
		plan = applySetItem(plan, item)
	}
	return plan, nil
}

func applySetItem(plan *Node, item cypher.SetItem) *Node {
	if len(item.Labels) > 0 {
		return &Node{Kind: SetLabels, Input: plan, VertexSym: item.Variable, NewLabels: item.Labels}
	}
	if item.Property == "" {
		// n = {...}: whole-map assignment via SetProperties.
		props := map[string]cypher.Expr{}
		if item.Expr.Kind == cypher.MapLiteral {
			props = item.Expr.Map
		}
		return &Node{Kind: SetProperties, Input: plan, VertexSym: item.Variable, NewProps: props}
	}
	return &Node{Kind: SetProperty, Input: plan, VertexSym: item.Variable, Property: item.Property, EqualityExpr: item.Expr}
}

func translateRemove(plan *Node, clause cypher.Clause, bound map[string]bool) (*Node, error) {
	for _, item := range clause.RemoveItems {
		if len(item.Labels) > 0 {
			plan = &Node{Kind: RemoveLabels, Input: plan, VertexSym: item.Variable, NewLabels: item.Labels}
			continue
		}
		plan = &Node{Kind: RemoveProperty, Input: plan, VertexSym: item.Variable, Property: item.Property}
	}
	return plan, nil
}

var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true,
}

// translateProjection builds a WITH/RETURN clause's Produce (or, if any
// item is an aggregate function call, Aggregate) node, followed by
// Distinct/OrderBy/Skip/Limit as the clause requests them.
func translateProjection(plan *Node, clause cypher.Clause, bound map[string]bool) (*Node, error) {
	var projections []Projection
	var aggregations []Aggregation
	hasAgg := false

	newBound := map[string]bool{}
	for _, item := range clause.Items {
		sym := item.As
		if sym == "" {
			sym = exprDefaultName(item.Expr)
		}
		if item.Expr.Kind == cypher.FunctionCall && aggregateFuncs[strings.ToLower(item.Expr.Name)] {
			hasAgg = true
			arg := cypher.Expr{Kind: cypher.Literal, Value: item.Expr.Value}
			if len(item.Expr.Args) > 0 {
				arg = item.Expr.Args[0]
			}
			aggregations = append(aggregations, Aggregation{Func: item.Expr.Name, Arg: arg, Symbol: sym})
		} else {
			projections = append(projections, Projection{Expr: item.Expr, Symbol: sym})
		}
		newBound[sym] = true
	}

	if hasAgg {
		plan = &Node{Kind: Aggregate, Input: plan, Projections: projections, Aggregations: aggregations}
	} else {
		plan = &Node{Kind: Produce, Input: plan, Projections: projections}
	}

	for k := range bound {
		delete(bound, k)
	}
	for k := range newBound {
		bound[k] = true
	}

	if clause.Distinct {
		plan = &Node{Kind: Distinct, Input: plan}
	}
	if len(clause.OrderBy) > 0 {
		keys := make([]OrderKey, 0, len(clause.OrderBy))
		for _, o := range clause.OrderBy {
			keys = append(keys, OrderKey{Expr: o.Expr, Descending: o.Descending})
		}
		plan = &Node{Kind: OrderBy, Input: plan, OrderKeys: keys}
	}
	if !isEmptyExpr(clause.Skip) {
		plan = &Node{Kind: Skip, Input: plan, CountExpr: clause.Skip}
	}
	if !isEmptyExpr(clause.Limit) {
		plan = &Node{Kind: Limit, Input: plan, CountExpr: clause.Limit}
	}
	return plan, nil
}

func exprDefaultName(e cypher.Expr) string {
	switch e.Kind {
	case cypher.Variable:
		return e.Name
	case cypher.Property:
		return e.Target + "." + e.Key
	case cypher.FunctionCall:
		var args []string
		for _, a := range e.Args {
			args = append(args, exprDefaultName(a))
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case cypher.Literal:
		return e.Value.String()
	default:
		return "expr"
	}
}
