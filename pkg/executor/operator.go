package executor

import (
	"fmt"
	"sort"

	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/planner"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Operator is one node of the running query: Open resets/primes it, Pull
// produces the next row into frame (returning false once exhausted), Reset
// rewinds it so an enclosing operator (Cartesian's right side, a repeated
// Expand) can replay it from the top.
type Operator interface {
	Open() error
	Pull(frame *Frame) (bool, error)
	Reset() error
}

// Build walks a logical plan and returns the operator tree that executes
// it, bound to acc for every storage read/write and ctx for every
// expression evaluation.
func Build(n *planner.Node, acc *graph.Accessor, ctx *EvaluationContext) (Operator, error) {
	if n == nil {
		return &onceOp{}, nil
	}

	var input Operator
	var err error
	if n.Input != nil {
		input, err = Build(n.Input, acc, ctx)
		if err != nil {
			return nil, err
		}
	}

	switch n.Kind {
	case planner.Once:
		return &onceOp{}, nil

	case planner.ScanAll:
		return &scanAllOp{acc: acc, symbol: n.OutputSymbol}, nil

	case planner.ScanAllByLabel:
		return &scanAllByLabelOp{acc: acc, label: n.Label, symbol: n.OutputSymbol}, nil

	case planner.ScanAllByLabelPropertyValue:
		return &scanByPropertyValueOp{acc: acc, label: n.Label, property: n.Property, eq: n.EqualityExpr, symbol: n.OutputSymbol, ctx: ctx}, nil

	case planner.ScanAllByLabelPropertyRange:
		return &scanByPropertyRangeOp{acc: acc, label: n.Label, property: n.Property, lower: n.Lower, upper: n.Upper, symbol: n.OutputSymbol, ctx: ctx}, nil

	case planner.Expand:
		return &expandOp{input: input, acc: acc, from: n.FromSymbol, to: n.ToSymbol, edgeSym: n.EdgeSymbol, dir: n.Direction, edgeType: n.EdgeType}, nil

	case planner.ExpandVariable:
		return &expandVariableOp{input: input, acc: acc, from: n.FromSymbol, to: n.ToSymbol, edgeSym: n.EdgeSymbol, dir: n.Direction, edgeType: n.EdgeType, minHops: n.MinHops, maxHops: n.MaxHops}, nil

	case planner.ConstructNamedPath:
		return &constructNamedPathOp{input: input, symbols: n.OptionalSymbols, out: n.OutputSymbol}, nil

	case planner.Filter:
		return &filterOp{input: input, predicate: n.Predicate, ctx: ctx}, nil

	case planner.EdgeUniquenessFilter:
		return &edgeUniquenessOp{input: input, symbols: n.EdgeSymbols}, nil

	case planner.Produce:
		return &produceOp{input: input, projections: n.Projections, ctx: ctx}, nil

	case planner.Aggregate:
		return &aggregateOp{input: input, groupBy: n.Projections, aggregations: n.Aggregations, ctx: ctx}, nil

	case planner.OrderBy:
		return &orderByOp{input: input, keys: n.OrderKeys, ctx: ctx}, nil

	case planner.Skip:
		return &skipOp{input: input, countExpr: n.CountExpr, ctx: ctx}, nil

	case planner.Limit:
		return &limitOp{input: input, countExpr: n.CountExpr, ctx: ctx}, nil

	case planner.Distinct:
		return &distinctOp{input: input}, nil

	case planner.Unwind:
		return &unwindOp{input: input, listExpr: n.ListExpr, as: n.AsSymbol, ctx: ctx}, nil

	case planner.CreateNode:
		return &createNodeOp{input: input, acc: acc, labels: n.NewLabels, props: n.NewProps, symbol: n.OutputSymbol, ctx: ctx}, nil

	case planner.CreateExpand:
		return &createExpandOp{input: input, acc: acc, from: n.FromSymbol, to: n.ToSymbol, edgeType: n.EdgeType, edgeSym: n.EdgeSymbol, props: n.NewProps, dir: n.Direction, ctx: ctx}, nil

	case planner.SetProperty:
		return &setPropertyOp{input: input, acc: acc, symbol: n.VertexSym, property: n.Property, expr: n.EqualityExpr, ctx: ctx}, nil

	case planner.SetProperties:
		return &setPropertiesOp{input: input, acc: acc, symbol: n.VertexSym, props: n.NewProps, ctx: ctx}, nil

	case planner.SetLabels:
		return &setLabelsOp{input: input, acc: acc, symbol: n.VertexSym, labels: n.NewLabels}, nil

	case planner.RemoveProperty:
		return &removePropertyOp{input: input, acc: acc, symbol: n.VertexSym, property: n.Property}, nil

	case planner.RemoveLabels:
		return &removeLabelsOp{input: input, acc: acc, symbol: n.VertexSym, labels: n.NewLabels}, nil

	case planner.Delete:
		return &deleteOp{input: input, acc: acc, vars: n.DeleteSyms, detach: n.Detach}, nil

	case planner.Accumulate:
		return &accumulateOp{input: input}, nil

	case planner.Cartesian:
		right, err := Build(n.Right, acc, ctx)
		if err != nil {
			return nil, err
		}
		return &cartesianOp{left: input, right: right}, nil

	case planner.Merge:
		right, err := Build(n.Right, acc, ctx)
		if err != nil {
			return nil, err
		}
		return &mergeOp{matchInput: input, createBranch: right}, nil

	case planner.Optional:
		return &optionalOp{input: input, symbols: n.OptionalSymbols}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported operator %s", errs.ErrQuery, n.Kind)
	}
}

// onceOp yields exactly one empty row, the universal leaf every scan chain
// starts from.
type onceOp struct{ pulled bool }

func (o *onceOp) Open() error { o.pulled = false; return nil }
func (o *onceOp) Pull(frame *Frame) (bool, error) {
	if o.pulled {
		return false, nil
	}
	o.pulled = true
	return true, nil
}
func (o *onceOp) Reset() error { o.pulled = false; return nil }

// scanAllOp enumerates every vertex visible to the transaction.
type scanAllOp struct {
	acc    *graph.Accessor
	symbol string
	rows   []*storeVertexRow
	idx    int
}

type storeVertexRow struct {
	addr gid.Address
	v    graph.Vertex
}

func (s *scanAllOp) Open() error {
	accessors := s.acc.Vertices.All(s.acc.Txn)
	s.rows = make([]*storeVertexRow, 0, len(accessors))
	for _, a := range accessors {
		s.rows = append(s.rows, &storeVertexRow{addr: gid.Address{Worker: s.acc.Self, Gid: a.Gid}, v: a.Data()})
	}
	s.idx = 0
	return nil
}

func (s *scanAllOp) Pull(frame *Frame) (bool, error) {
	if s.idx >= len(s.rows) {
		return false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	frame.Set(s.symbol, VertexBinding(row.addr, row.v))
	return true, nil
}

func (s *scanAllOp) Reset() error { s.idx = 0; return nil }

// scanAllByLabelOp enumerates vertices carrying one label via the label
// index, re-resolving each to its currently visible version.
type scanAllByLabelOp struct {
	acc    *graph.Accessor
	label  string
	symbol string
	gids   []gid.Gid
	idx    int
}

func (s *scanAllByLabelOp) Open() error {
	s.gids = s.acc.Schema.Labels().Lookup(s.label)
	s.idx = 0
	return nil
}

func (s *scanAllByLabelOp) Pull(frame *Frame) (bool, error) {
	for s.idx < len(s.gids) {
		g := s.gids[s.idx]
		s.idx++
		a, err := s.acc.FindVertex(g)
		if err != nil {
			continue
		}
		frame.Set(s.symbol, VertexBinding(gid.Address{Worker: s.acc.Self, Gid: g}, a.Data()))
		return true, nil
	}
	return false, nil
}

func (s *scanAllByLabelOp) Reset() error { s.idx = 0; return nil }

// scanByPropertyValueOp uses a label-property index's point lookup.
type scanByPropertyValueOp struct {
	acc      *graph.Accessor
	label    string
	property string
	eq       cypher.Expr
	symbol   string
	ctx      *EvaluationContext
	gids     []gid.Gid
	idx      int
}

func (s *scanByPropertyValueOp) Open() error {
	idx, ok := s.acc.Schema.PropertyIndexFor(s.label, s.property)
	if !ok {
		s.gids = nil
		s.idx = 0
		return nil
	}
	v, err := Eval(s.eq, NewFrame(), s.ctx)
	if err != nil {
		return err
	}
	s.gids = idx.PointLookup(v)
	s.idx = 0
	return nil
}

func (s *scanByPropertyValueOp) Pull(frame *Frame) (bool, error) {
	for s.idx < len(s.gids) {
		g := s.gids[s.idx]
		s.idx++
		a, err := s.acc.FindVertex(g)
		if err != nil {
			continue
		}
		frame.Set(s.symbol, VertexBinding(gid.Address{Worker: s.acc.Self, Gid: g}, a.Data()))
		return true, nil
	}
	return false, nil
}

func (s *scanByPropertyValueOp) Reset() error { s.idx = 0; return nil }

// scanByPropertyRangeOp uses a label-property index's range scan.
type scanByPropertyRangeOp struct {
	acc      *graph.Accessor
	label    string
	property string
	lower    planner.Bound
	upper    planner.Bound
	symbol   string
	ctx      *EvaluationContext
	gids     []gid.Gid
	idx      int
}

func (s *scanByPropertyRangeOp) Open() error {
	idx, ok := s.acc.Schema.PropertyIndexFor(s.label, s.property)
	if !ok {
		s.gids = nil
		s.idx = 0
		return nil
	}
	lower, err := resolveBound(s.lower, s.ctx)
	if err != nil {
		return err
	}
	upper, err := resolveBound(s.upper, s.ctx)
	if err != nil {
		return err
	}
	s.gids = idx.RangeScan(lower, upper)
	s.idx = 0
	return nil
}

func resolveBound(b planner.Bound, ctx *EvaluationContext) (index.Bound, error) {
	if !b.Present {
		return index.Bound{}, nil
	}
	v, err := Eval(b.Value, NewFrame(), ctx)
	if err != nil {
		return index.Bound{}, err
	}
	return index.Bound{Present: true, Value: v, Inclusive: b.Inclusive}, nil
}

func (s *scanByPropertyRangeOp) Pull(frame *Frame) (bool, error) {
	for s.idx < len(s.gids) {
		g := s.gids[s.idx]
		s.idx++
		a, err := s.acc.FindVertex(g)
		if err != nil {
			continue
		}
		frame.Set(s.symbol, VertexBinding(gid.Address{Worker: s.acc.Self, Gid: g}, a.Data()))
		return true, nil
	}
	return false, nil
}

func (s *scanByPropertyRangeOp) Reset() error { s.idx = 0; return nil }

// filterOp passes through only rows for which predicate evaluates truthy.
type filterOp struct {
	input     Operator
	predicate cypher.Expr
	ctx       *EvaluationContext
}

func (f *filterOp) Open() error { return f.input.Open() }

func (f *filterOp) Pull(frame *Frame) (bool, error) {
	for {
		ok, err := f.input.Pull(frame)
		if err != nil || !ok {
			return ok, err
		}
		v, err := Eval(f.predicate, frame, f.ctx)
		if err != nil {
			return false, err
		}
		b, isNull := truthValue(v)
		if !isNull && b {
			return true, nil
		}
	}
}

func (f *filterOp) Reset() error { return f.input.Reset() }

// produceOp projects the input row into a fresh row holding only the
// requested symbols. A bare-variable projection (RETURN n) carries the
// original Binding forward so a vertex/edge stays addressable by later
// operators instead of collapsing to its property map.
type produceOp struct {
	input       Operator
	projections []planner.Projection
	ctx         *EvaluationContext
}

func (p *produceOp) Open() error { return p.input.Open() }

func (p *produceOp) Pull(frame *Frame) (bool, error) {
	scratch := NewFrame()
	ok, err := p.input.Pull(scratch)
	if err != nil || !ok {
		return ok, err
	}
	out := NewFrame()
	for _, proj := range p.projections {
		if proj.Expr.Kind == cypher.Variable {
			if b, ok := scratch.Get(proj.Expr.Name); ok {
				out.Set(proj.Symbol, b)
				continue
			}
		}
		v, err := Eval(proj.Expr, scratch, p.ctx)
		if err != nil {
			return false, err
		}
		out.Set(proj.Symbol, ScalarBinding(v))
	}
	*frame = *out
	return true, nil
}

func (p *produceOp) Reset() error { return p.input.Reset() }

// skipOp discards the first N rows, N evaluated once at Open against an
// empty frame (skip counts are constant expressions/parameters, never
// row-dependent, per Cypher grammar).
type skipOp struct {
	input     Operator
	countExpr cypher.Expr
	ctx       *EvaluationContext
	remaining int64
}

func (s *skipOp) Open() error {
	if err := s.input.Open(); err != nil {
		return err
	}
	n, err := evalCount(s.countExpr, s.ctx)
	if err != nil {
		return err
	}
	s.remaining = n
	return nil
}

func (s *skipOp) Pull(frame *Frame) (bool, error) {
	for s.remaining > 0 {
		ok, err := s.input.Pull(frame)
		if err != nil || !ok {
			return ok, err
		}
		s.remaining--
	}
	return s.input.Pull(frame)
}

func (s *skipOp) Reset() error { return s.input.Reset() }

// limitOp stops after N rows.
type limitOp struct {
	input     Operator
	countExpr cypher.Expr
	ctx       *EvaluationContext
	remaining int64
}

func (l *limitOp) Open() error {
	if err := l.input.Open(); err != nil {
		return err
	}
	n, err := evalCount(l.countExpr, l.ctx)
	if err != nil {
		return err
	}
	l.remaining = n
	return nil
}

func (l *limitOp) Pull(frame *Frame) (bool, error) {
	if l.remaining <= 0 {
		return false, nil
	}
	ok, err := l.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	l.remaining--
	return true, nil
}

func (l *limitOp) Reset() error { return l.input.Reset() }

func evalCount(e cypher.Expr, ctx *EvaluationContext) (int64, error) {
	v, err := Eval(e, NewFrame(), ctx)
	if err != nil {
		return 0, err
	}
	if v.Kind != value.Int {
		return 0, fmt.Errorf("%w: SKIP/LIMIT requires an integer", errs.ErrQuery)
	}
	return v.I, nil
}

// distinctOp drops rows whose every slot matches one already seen,
// comparing via each binding's scalar rendering.
type distinctOp struct {
	input Operator
	seen  map[string]struct{}
}

func (d *distinctOp) Open() error {
	d.seen = make(map[string]struct{})
	return d.input.Open()
}

func (d *distinctOp) Pull(frame *Frame) (bool, error) {
	for {
		ok, err := d.input.Pull(frame)
		if err != nil || !ok {
			return ok, err
		}
		key := rowKey(frame)
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.seen[key] = struct{}{}
		return true, nil
	}
}

func (d *distinctOp) Reset() error {
	d.seen = make(map[string]struct{})
	return d.input.Reset()
}

func rowKey(frame *Frame) string {
	keys := make([]string, 0, len(frame.slots))
	for k := range frame.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		b := frame.slots[k]
		key += k + "=" + bindingKey(b) + "\x1f"
	}
	return key
}

func bindingKey(b Binding) string {
	switch b.Kind {
	case BindVertex:
		return "v:" + b.VertexAddr.String()
	case BindEdge:
		return "e:" + b.EdgeAddr.String()
	default:
		return "s:" + b.Scalar.String()
	}
}

// orderByOp materializes the input (sorting inherently needs the whole
// set) and replays it in sorted order.
type orderByOp struct {
	input Operator
	keys  []planner.OrderKey
	ctx   *EvaluationContext
	rows  []*Frame
	idx   int
	err   error
}

func (o *orderByOp) Open() error {
	if err := o.input.Open(); err != nil {
		return err
	}
	o.rows = nil
	for {
		f := NewFrame()
		ok, err := o.input.Pull(f)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		o.rows = append(o.rows, f)
	}
	sort.SliceStable(o.rows, func(i, j int) bool {
		return o.less(o.rows[i], o.rows[j])
	})
	o.idx = 0
	return o.err
}

func (o *orderByOp) less(a, b *Frame) bool {
	for _, k := range o.keys {
		av, err := Eval(k.Expr, a, o.ctx)
		if err != nil {
			o.err = err
			return false
		}
		bv, err := Eval(k.Expr, b, o.ctx)
		if err != nil {
			o.err = err
			return false
		}
		if av.IsNull() || bv.IsNull() || !value.Orderable(av, bv) {
			continue
		}
		c := value.Compare(av, bv)
		if c == 0 {
			continue
		}
		if k.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

func (o *orderByOp) Pull(frame *Frame) (bool, error) {
	if o.idx >= len(o.rows) {
		return false, nil
	}
	*frame = *o.rows[o.idx]
	o.idx++
	return true, nil
}

func (o *orderByOp) Reset() error { o.idx = 0; return nil }

// unwindOp expands one list-valued expression per input row into one
// output row per element.
type unwindOp struct {
	input    Operator
	listExpr cypher.Expr
	as       string
	ctx      *EvaluationContext
	current  *Frame
	items    []value.TypedValue
	idx      int
}

func (u *unwindOp) Open() error {
	u.items = nil
	u.idx = 0
	u.current = nil
	return u.input.Open()
}

func (u *unwindOp) Pull(frame *Frame) (bool, error) {
	for {
		if u.current != nil && u.idx < len(u.items) {
			*frame = *u.current.Clone()
			frame.Set(u.as, ScalarBinding(u.items[u.idx]))
			u.idx++
			return true, nil
		}
		next := NewFrame()
		ok, err := u.input.Pull(next)
		if err != nil || !ok {
			return ok, err
		}
		v, err := Eval(u.listExpr, next, u.ctx)
		if err != nil {
			return false, err
		}
		u.current = next
		u.idx = 0
		if v.Kind == value.ListKind {
			u.items = v.L
		} else {
			u.items = []value.TypedValue{v}
		}
	}
}

func (u *unwindOp) Reset() error {
	u.items = nil
	u.idx = 0
	u.current = nil
	return u.input.Reset()
}
