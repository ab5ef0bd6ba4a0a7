package executor

import (
	"fmt"
	"strings"

	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/planner"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// accumulateOp drains its input fully at Open, then streams the buffered
// rows upward. This is the barrier WITH needs before a write clause reads
// back what an earlier write clause in the same query just changed.
type accumulateOp struct {
	input Operator
	rows  []*Frame
	idx   int
}

func (a *accumulateOp) Open() error {
	if err := a.input.Open(); err != nil {
		return err
	}
	a.rows = nil
	for {
		f := NewFrame()
		ok, err := a.input.Pull(f)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		a.rows = append(a.rows, f)
	}
	a.idx = 0
	return nil
}

func (a *accumulateOp) Pull(frame *Frame) (bool, error) {
	if a.idx >= len(a.rows) {
		return false, nil
	}
	*frame = *a.rows[a.idx]
	a.idx++
	return true, nil
}

func (a *accumulateOp) Reset() error { a.idx = 0; return nil }

// cartesianOp produces the cross product of two unrelated subplans: the
// left drives, the right is re-walked from the top for every left row.
// The right side has no input bindings from the left, so it is safe to
// materialize once at Open and replay it per left row instead of truly
// resetting storage-backed state every time.
type cartesianOp struct {
	left  Operator
	right Operator

	rightRows []*Frame
	leftRow   *Frame
	idx       int
}

func (c *cartesianOp) Open() error {
	if err := c.left.Open(); err != nil {
		return err
	}
	if err := c.right.Open(); err != nil {
		return err
	}
	c.rightRows = nil
	for {
		f := NewFrame()
		ok, err := c.right.Pull(f)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		c.rightRows = append(c.rightRows, f)
	}
	c.leftRow = nil
	c.idx = 0
	return nil
}

func (c *cartesianOp) Pull(frame *Frame) (bool, error) {
	for {
		if c.leftRow != nil && c.idx < len(c.rightRows) {
			merged := c.leftRow.Clone()
			rr := c.rightRows[c.idx]
			c.idx++
			for k, v := range rr.slots {
				merged.Set(k, v)
			}
			*frame = *merged
			return true, nil
		}
		next := NewFrame()
		ok, err := c.left.Pull(next)
		if err != nil || !ok {
			return ok, err
		}
		c.leftRow = next
		c.idx = 0
	}
}

func (c *cartesianOp) Reset() error {
	c.leftRow = nil
	c.idx = 0
	return c.left.Reset()
}

// mergeOp implements MERGE: if matchInput yields any row, those rows pass
// through unchanged (ON MATCH is expected to be a further SET operator
// layered on top by the plan); otherwise createBranch runs once to create
// the pattern (ON CREATE likewise layered above).
type mergeOp struct {
	matchInput   Operator
	createBranch Operator

	matched    []*Frame
	idx        int
	ranCreate  bool
	createRows []*Frame
}

func (m *mergeOp) Open() error {
	if err := m.matchInput.Open(); err != nil {
		return err
	}
	m.matched = nil
	for {
		f := NewFrame()
		ok, err := m.matchInput.Pull(f)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		m.matched = append(m.matched, f)
	}
	m.idx = 0
	m.ranCreate = false
	m.createRows = nil
	return nil
}

func (m *mergeOp) Pull(frame *Frame) (bool, error) {
	if len(m.matched) > 0 {
		if m.idx >= len(m.matched) {
			return false, nil
		}
		*frame = *m.matched[m.idx]
		m.idx++
		return true, nil
	}

	if !m.ranCreate {
		m.ranCreate = true
		if err := m.createBranch.Open(); err != nil {
			return false, err
		}
		for {
			f := NewFrame()
			ok, err := m.createBranch.Pull(f)
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			m.createRows = append(m.createRows, f)
		}
	}
	if m.idx >= len(m.createRows) {
		return false, nil
	}
	*frame = *m.createRows[m.idx]
	m.idx++
	return true, nil
}

func (m *mergeOp) Reset() error {
	m.idx = 0
	return m.matchInput.Reset()
}

// optionalOp wraps a subplan that may legitimately bind zero rows (OPTIONAL
// MATCH): if input yields nothing, it emits exactly one row with every
// symbol the wrapped pattern would have bound set to null instead.
type optionalOp struct {
	input    Operator
	symbols  []string
	anyYield bool
	done     bool
}

func (o *optionalOp) Open() error {
	o.anyYield = false
	o.done = false
	return o.input.Open()
}

func (o *optionalOp) Pull(frame *Frame) (bool, error) {
	if o.done {
		return false, nil
	}
	ok, err := o.input.Pull(frame)
	if err != nil {
		return false, err
	}
	if ok {
		o.anyYield = true
		return true, nil
	}
	if o.anyYield {
		o.done = true
		return false, nil
	}
	o.done = true
	for _, sym := range o.symbols {
		frame.Set(sym, Binding{Kind: BindNull})
	}
	return true, nil
}

func (o *optionalOp) Reset() error {
	o.anyYield = false
	o.done = false
	return o.input.Reset()
}

// aggregateOp drains the input, groups by groupBy, and computes one
// output row per group with each Aggregation's result bound at its
// symbol — the standard hash-aggregate shape, acceptable since aggregation
// inherently needs the whole group before it can emit anything.
type aggregateOp struct {
	input        Operator
	groupBy      []planner.Projection
	aggregations []planner.Aggregation
	ctx          *EvaluationContext

	rows []*Frame
	idx  int
}

type aggGroup struct {
	keyFrame *Frame
	rows     []*Frame
}

func (a *aggregateOp) Open() error {
	if err := a.input.Open(); err != nil {
		return err
	}

	groups := make(map[string]*aggGroup)
	var order []string
	for {
		f := NewFrame()
		ok, err := a.input.Pull(f)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, keyVals, err := a.groupKey(f)
		if err != nil {
			return err
		}
		g, ok := groups[key]
		if !ok {
			g = &aggGroup{keyFrame: keyVals}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, f)
	}

	a.rows = nil
	for _, key := range order {
		g := groups[key]
		out := g.keyFrame.Clone()
		for _, agg := range a.aggregations {
			v, err := computeAggregation(agg, g.rows, a.ctx)
			if err != nil {
				return err
			}
			out.Set(agg.Symbol, ScalarBinding(v))
		}
		a.rows = append(a.rows, out)
	}
	if len(a.rows) == 0 && len(a.groupBy) == 0 {
		// No GROUP BY keys and no input rows still produces one row, e.g.
		// RETURN count(*) over an empty match.
		out := NewFrame()
		for _, agg := range a.aggregations {
			v, err := computeAggregation(agg, nil, a.ctx)
			if err != nil {
				return err
			}
			out.Set(agg.Symbol, ScalarBinding(v))
		}
		a.rows = []*Frame{out}
	}
	a.idx = 0
	return nil
}

func (a *aggregateOp) groupKey(f *Frame) (string, *Frame, error) {
	out := NewFrame()
	var b strings.Builder
	for _, p := range a.groupBy {
		v, err := Eval(p.Expr, f, a.ctx)
		if err != nil {
			return "", nil, err
		}
		out.Set(p.Symbol, ScalarBinding(v))
		b.WriteString(v.String())
		b.WriteByte('\x1f')
	}
	return b.String(), out, nil
}

func computeAggregation(agg planner.Aggregation, rows []*Frame, ctx *EvaluationContext) (value.TypedValue, error) {
	switch strings.ToLower(agg.Func) {
	case "count":
		if agg.Arg.Kind == cypher.Literal && agg.Arg.Value.Kind == value.Null {
			return value.IntValue(int64(len(rows))), nil
		}
		n := int64(0)
		for _, r := range rows {
			v, err := Eval(agg.Arg, r, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			if !v.IsNull() {
				n++
			}
		}
		return value.IntValue(n), nil
	case "sum":
		var sumI int64
		var sumF float64
		isFloat := false
		for _, r := range rows {
			v, err := Eval(agg.Arg, r, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			if v.IsNull() {
				continue
			}
			if v.Kind == value.Float || isFloat {
				isFloat = true
				sumF += asAggFloat(v)
			} else {
				sumI += v.I
			}
		}
		if isFloat {
			return value.FloatValue(sumF + float64(sumI)), nil
		}
		return value.IntValue(sumI), nil
	case "avg":
		var sum float64
		var n int64
		for _, r := range rows {
			v, err := Eval(agg.Arg, r, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			if v.IsNull() {
				continue
			}
			sum += asAggFloat(v)
			n++
		}
		if n == 0 {
			return value.NullValue(), nil
		}
		return value.FloatValue(sum / float64(n)), nil
	case "min", "max":
		var best value.TypedValue
		has := false
		for _, r := range rows {
			v, err := Eval(agg.Arg, r, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			if v.IsNull() {
				continue
			}
			if !has {
				best, has = v, true
				continue
			}
			if !value.Orderable(best, v) {
				continue
			}
			c := value.Compare(v, best)
			if (strings.ToLower(agg.Func) == "min" && c < 0) || (strings.ToLower(agg.Func) == "max" && c > 0) {
				best = v
			}
		}
		if !has {
			return value.NullValue(), nil
		}
		return best, nil
	case "collect":
		items := make([]value.TypedValue, 0, len(rows))
		for _, r := range rows {
			v, err := Eval(agg.Arg, r, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			if !v.IsNull() {
				items = append(items, v)
			}
		}
		return value.ListValue(items), nil
	default:
		return value.TypedValue{}, fmt.Errorf("%w: unknown aggregate function %s", errs.ErrQuery, agg.Func)
	}
}

func asAggFloat(v value.TypedValue) float64 {
	if v.Kind == value.Int {
		return float64(v.I)
	}
	return v.F
}

func (a *aggregateOp) Pull(frame *Frame) (bool, error) {
	if a.idx >= len(a.rows) {
		return false, nil
	}
	*frame = *a.rows[a.idx]
	a.idx++
	return true, nil
}

func (a *aggregateOp) Reset() error { a.idx = 0; return nil }
