package executor

import (
	"fmt"

	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/planner"
	"github.com/arefrazavi/memgraph/pkg/value"
)

func evalProps(props map[string]cypher.Expr, frame *Frame, ctx *EvaluationContext) (map[string]value.TypedValue, error) {
	out := make(map[string]value.TypedValue, len(props))
	for k, e := range props {
		v, err := Eval(e, frame, ctx)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// createNodeOp executes CREATE (n:Label {props}) for each input row,
// binding the new vertex at symbol.
type createNodeOp struct {
	input  Operator
	acc    *graph.Accessor
	labels []string
	props  map[string]cypher.Expr
	symbol string
	ctx    *EvaluationContext
}

func (c *createNodeOp) Open() error { return c.input.Open() }

func (c *createNodeOp) Pull(frame *Frame) (bool, error) {
	ok, err := c.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	props, err := evalProps(c.props, frame, c.ctx)
	if err != nil {
		return false, err
	}
	addr, err := c.acc.CreateVertex(c.labels, props)
	if err != nil {
		return false, err
	}
	a, err := c.acc.FindVertex(addr.Gid)
	if err != nil {
		return false, err
	}
	frame.Set(c.symbol, VertexBinding(addr, a.Data()))
	return true, nil
}

func (c *createNodeOp) Reset() error { return c.input.Reset() }

// createExpandOp executes CREATE (a)-[r:TYPE {props}]->(b) for each input
// row, where both a and b are already bound (by a MATCH or an earlier
// CreateNode in the same pattern) and only the relationship is new.
type createExpandOp struct {
	input    Operator
	acc      *graph.Accessor
	from     string
	to       string
	edgeType string
	edgeSym  string
	props    map[string]cypher.Expr
	dir      planner.Direction
	ctx      *EvaluationContext
}

func (c *createExpandOp) Open() error { return c.input.Open() }

func (c *createExpandOp) Pull(frame *Frame) (bool, error) {
	ok, err := c.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	fromB, ok := frame.Get(c.from)
	if !ok || fromB.Kind != BindVertex {
		return false, fmt.Errorf("%w: CREATE relationship requires a bound start node", errs.ErrQuery)
	}
	toB, ok := frame.Get(c.to)
	if !ok || toB.Kind != BindVertex {
		return false, fmt.Errorf("%w: CREATE relationship requires a bound end node", errs.ErrQuery)
	}
	from, to := fromB.VertexAddr, toB.VertexAddr
	if c.dir == planner.In {
		from, to = to, from
	}
	props, err := evalProps(c.props, frame, c.ctx)
	if err != nil {
		return false, err
	}
	eAddr, err := c.acc.CreateEdge(from, to, c.edgeType, props)
	if err != nil {
		return false, err
	}
	if c.edgeSym != "" {
		ea, err := c.acc.FindEdge(eAddr.Gid)
		if err == nil {
			frame.Set(c.edgeSym, EdgeBinding(eAddr, ea.Data()))
		}
	}
	return true, nil
}

func (c *createExpandOp) Reset() error { return c.input.Reset() }

// setPropertyOp executes SET n.prop = expr.
type setPropertyOp struct {
	input    Operator
	acc      *graph.Accessor
	symbol   string
	property string
	expr     cypher.Expr
	ctx      *EvaluationContext
}

func (s *setPropertyOp) Open() error { return s.input.Open() }

func (s *setPropertyOp) Pull(frame *Frame) (bool, error) {
	ok, err := s.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	b, ok := frame.Get(s.symbol)
	if !ok {
		return false, fmt.Errorf("%w: unbound identifier %s", errs.ErrQuery, s.symbol)
	}
	v, err := Eval(s.expr, frame, s.ctx)
	if err != nil {
		return false, err
	}
	switch b.Kind {
	case BindVertex:
		va, err := s.acc.FindVertex(b.VertexAddr.Gid)
		if err != nil {
			return false, err
		}
		next, err := s.acc.SetVertexProperty(va, s.property, v)
		if err != nil {
			return false, err
		}
		frame.Set(s.symbol, VertexBinding(b.VertexAddr, next.Data()))
	case BindEdge:
		ea, err := s.acc.FindEdge(b.EdgeAddr.Gid)
		if err != nil {
			return false, err
		}
		next, err := s.acc.SetEdgeProperty(ea, s.property, v)
		if err != nil {
			return false, err
		}
		frame.Set(s.symbol, EdgeBinding(b.EdgeAddr, next.Data()))
	default:
		return false, fmt.Errorf("%w: SET requires a node or relationship", errs.ErrQuery)
	}
	return true, nil
}

func (s *setPropertyOp) Reset() error { return s.input.Reset() }

// setPropertiesOp executes SET n = {props}, applying each property one at
// a time through the same path as setPropertyOp so the label-property
// index stays correct. Properties not named in props are left in place.
type setPropertiesOp struct {
	input  Operator
	acc    *graph.Accessor
	symbol string
	props  map[string]cypher.Expr
	ctx    *EvaluationContext
}

func (s *setPropertiesOp) Open() error { return s.input.Open() }

func (s *setPropertiesOp) Pull(frame *Frame) (bool, error) {
	ok, err := s.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	b, ok := frame.Get(s.symbol)
	if !ok || b.Kind != BindVertex {
		return false, fmt.Errorf("%w: SET {...} requires a bound node", errs.ErrQuery)
	}
	for prop, e := range s.props {
		v, err := Eval(e, frame, s.ctx)
		if err != nil {
			return false, err
		}
		va, err := s.acc.FindVertex(b.VertexAddr.Gid)
		if err != nil {
			return false, err
		}
		next, err := s.acc.SetVertexProperty(va, prop, v)
		if err != nil {
			return false, err
		}
		frame.Set(s.symbol, VertexBinding(b.VertexAddr, next.Data()))
		b, _ = frame.Get(s.symbol)
	}
	return true, nil
}

func (s *setPropertiesOp) Reset() error { return s.input.Reset() }

// setLabelsOp executes SET n:Label1:Label2.
type setLabelsOp struct {
	input  Operator
	acc    *graph.Accessor
	symbol string
	labels []string
}

func (s *setLabelsOp) Open() error { return s.input.Open() }

func (s *setLabelsOp) Pull(frame *Frame) (bool, error) {
	ok, err := s.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	b, ok := frame.Get(s.symbol)
	if !ok || b.Kind != BindVertex {
		return false, fmt.Errorf("%w: SET label requires a bound node", errs.ErrQuery)
	}
	addr := b.VertexAddr
	for _, label := range s.labels {
		va, err := s.acc.FindVertex(addr.Gid)
		if err != nil {
			return false, err
		}
		next, err := s.acc.AddLabel(va, label)
		if err != nil {
			return false, err
		}
		frame.Set(s.symbol, VertexBinding(addr, next.Data()))
	}
	return true, nil
}

func (s *setLabelsOp) Reset() error { return s.input.Reset() }

// removePropertyOp executes REMOVE n.prop — implemented as setting it to
// null, the same wire representation an absent property has.
type removePropertyOp struct {
	input    Operator
	acc      *graph.Accessor
	symbol   string
	property string
}

func (r *removePropertyOp) Open() error { return r.input.Open() }

func (r *removePropertyOp) Pull(frame *Frame) (bool, error) {
	ok, err := r.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	b, ok := frame.Get(r.symbol)
	if !ok || b.Kind != BindVertex {
		return false, fmt.Errorf("%w: REMOVE property requires a bound node", errs.ErrQuery)
	}
	va, err := r.acc.FindVertex(b.VertexAddr.Gid)
	if err != nil {
		return false, err
	}
	next, err := r.acc.SetVertexProperty(va, r.property, value.NullValue())
	if err != nil {
		return false, err
	}
	frame.Set(r.symbol, VertexBinding(b.VertexAddr, next.Data()))
	return true, nil
}

func (r *removePropertyOp) Reset() error { return r.input.Reset() }

// removeLabelsOp executes REMOVE n:Label1:Label2.
type removeLabelsOp struct {
	input  Operator
	acc    *graph.Accessor
	symbol string
	labels []string
}

func (r *removeLabelsOp) Open() error { return r.input.Open() }

func (r *removeLabelsOp) Pull(frame *Frame) (bool, error) {
	ok, err := r.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	b, ok := frame.Get(r.symbol)
	if !ok || b.Kind != BindVertex {
		return false, fmt.Errorf("%w: REMOVE label requires a bound node", errs.ErrQuery)
	}
	addr := b.VertexAddr
	for _, label := range r.labels {
		va, err := r.acc.FindVertex(addr.Gid)
		if err != nil {
			return false, err
		}
		next, err := r.acc.RemoveLabel(va, label)
		if err != nil {
			return false, err
		}
		frame.Set(r.symbol, VertexBinding(addr, next.Data()))
	}
	return true, nil
}

func (r *removeLabelsOp) Reset() error { return r.input.Reset() }

// deleteOp executes DELETE / DETACH DELETE. Edges named are removed first
// so a DETACH DELETE of a node whose own incident edges are also named in
// the same clause never hits ErrUnableToDeleteVertex.
type deleteOp struct {
	input  Operator
	acc    *graph.Accessor
	vars   []string
	detach bool
}

func (d *deleteOp) Open() error { return d.input.Open() }

func (d *deleteOp) Pull(frame *Frame) (bool, error) {
	ok, err := d.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}

	var vertices []gid.Address
	for _, sym := range d.vars {
		b, ok := frame.Get(sym)
		if !ok {
			continue
		}
		switch b.Kind {
		case BindEdge:
			ea, err := d.acc.FindEdge(b.EdgeAddr.Gid)
			if err != nil {
				continue
			}
			if err := d.acc.RemoveEdge(ea); err != nil {
				return false, err
			}
		case BindVertex:
			vertices = append(vertices, b.VertexAddr)
		}
	}

	for _, addr := range vertices {
		if d.detach {
			if err := d.detachVertex(addr); err != nil {
				return false, err
			}
		}
		va, err := d.acc.FindVertex(addr.Gid)
		if err != nil {
			return false, err
		}
		if err := d.acc.RemoveVertex(va, !d.detach); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (d *deleteOp) detachVertex(addr gid.Address) error {
	for {
		va, err := d.acc.FindVertex(addr.Gid)
		if err != nil {
			return err
		}
		data := va.Data()
		if len(data.Out) == 0 && len(data.In) == 0 {
			return nil
		}
		var link graph.EdgeLink
		if len(data.Out) > 0 {
			link = data.Out[0]
		} else {
			link = data.In[0]
		}
		ea, err := d.acc.FindEdge(link.Edge.Gid)
		if err != nil {
			return err
		}
		if err := d.acc.RemoveEdge(ea); err != nil {
			return err
		}
	}
}

func (d *deleteOp) Reset() error { return d.input.Reset() }
