package executor

import (
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/planner"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// expandOp walks one hop of edges from the vertex bound at `from`,
// binding the neighbor vertex at `to` and the edge at `edgeSym`. It
// buffers the current input row's candidate edges and replays them before
// pulling the next input row, the standard nested-loop-join shape a
// pull-based Expand takes.
type expandOp struct {
	input    Operator
	acc      *graph.Accessor
	from     string
	to       string
	edgeSym  string
	dir      planner.Direction
	edgeType string

	base    *Frame
	links   []graph.EdgeLink
	inbound bool
	idx     int
}

func (e *expandOp) Open() error {
	e.base = nil
	e.links = nil
	e.idx = 0
	return e.input.Open()
}

func (e *expandOp) Pull(frame *Frame) (bool, error) {
	for {
		if e.idx < len(e.links) {
			link := e.links[e.idx]
			e.idx++
			nv, err := e.resolveVertex(link.Neighbor)
			if err != nil {
				continue
			}
			*frame = *e.base.Clone()
			frame.Set(e.to, VertexBinding(link.Neighbor, nv))
			if e.edgeSym != "" {
				ea, ev, err := e.resolveEdge(link.Edge)
				if err == nil {
					frame.Set(e.edgeSym, EdgeBinding(ea, ev))
				}
			}
			return true, nil
		}

		next := NewFrame()
		ok, err := e.input.Pull(next)
		if err != nil || !ok {
			return ok, err
		}
		b, ok := next.Get(e.from)
		if !ok || b.Kind != BindVertex {
			continue
		}
		e.base = next
		e.links = candidateLinks(b.Vertex, e.dir, e.edgeType)
		e.idx = 0
	}
}

func candidateLinks(v graph.Vertex, dir planner.Direction, edgeType string) []graph.EdgeLink {
	var links []graph.EdgeLink
	if dir == planner.Out || dir == planner.Both {
		links = append(links, v.Out...)
	}
	if dir == planner.In || dir == planner.Both {
		links = append(links, v.In...)
	}
	if edgeType == "" {
		return links
	}
	filtered := links[:0]
	for _, l := range links {
		if l.Type == edgeType {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

func (e *expandOp) resolveVertex(addr gid.Address) (graph.Vertex, error) {
	a, err := e.acc.FindVertex(addr.Gid)
	if err != nil {
		return graph.Vertex{}, err
	}
	return a.Data(), nil
}

func (e *expandOp) resolveEdge(addr gid.Address) (gid.Address, graph.Edge, error) {
	a, err := e.acc.FindEdge(addr.Gid)
	if err != nil {
		return gid.Address{}, graph.Edge{}, err
	}
	return addr, a.Data(), nil
}

func (e *expandOp) Reset() error {
	e.base = nil
	e.links = nil
	e.idx = 0
	return e.input.Reset()
}

// expandVariableOp walks between minHops and maxHops edges breadth-first
// from `from`, binding each reachable vertex at `to`. Unlike Expand it does
// not track the path of edges traversed — only the endpoint is bound, and
// edgeSym is left unset.
type expandVariableOp struct {
	input    Operator
	acc      *graph.Accessor
	from     string
	to       string
	edgeSym  string
	dir      planner.Direction
	edgeType string
	minHops  int
	maxHops  int

	base    *Frame
	results []hopResult
	idx     int
}

type hopResult struct {
	addr gid.Address
	v    graph.Vertex
}

func (e *expandVariableOp) Open() error {
	e.base = nil
	e.results = nil
	e.idx = 0
	return e.input.Open()
}

func (e *expandVariableOp) Pull(frame *Frame) (bool, error) {
	for {
		if e.idx < len(e.results) {
			r := e.results[e.idx]
			e.idx++
			*frame = *e.base.Clone()
			frame.Set(e.to, VertexBinding(r.addr, r.v))
			return true, nil
		}

		next := NewFrame()
		ok, err := e.input.Pull(next)
		if err != nil || !ok {
			return ok, err
		}
		b, ok := next.Get(e.from)
		if !ok || b.Kind != BindVertex {
			continue
		}
		e.base = next
		e.results = e.bfs(b.VertexAddr, b.Vertex)
		e.idx = 0
	}
}

func (e *expandVariableOp) bfs(startAddr gid.Address, start graph.Vertex) []hopResult {
	type frontierItem struct {
		addr gid.Address
		v    graph.Vertex
		hops int
	}
	visited := map[gid.Gid]struct{}{startAddr.Gid: {}}
	frontier := []frontierItem{{addr: startAddr, v: start, hops: 0}}
	var out []hopResult

	maxHops := e.maxHops
	switch {
	case maxHops < 0:
		// -1 is the parser's open upper bound (`*`, `*2..`): the visited
		// set alone ends the walk.
		maxHops = int(^uint(0) >> 1)
	case maxHops == 0:
		maxHops = 1
	}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.hops >= maxHops {
			continue
		}
		for _, link := range candidateLinks(cur.v, e.dir, e.edgeType) {
			if _, seen := visited[link.Neighbor.Gid]; seen {
				continue
			}
			nv, err := e.acc.FindVertex(link.Neighbor.Gid)
			if err != nil {
				continue
			}
			visited[link.Neighbor.Gid] = struct{}{}
			hops := cur.hops + 1
			item := frontierItem{addr: link.Neighbor, v: nv.Data(), hops: hops}
			frontier = append(frontier, item)
			if hops >= e.minHops {
				out = append(out, hopResult{addr: link.Neighbor, v: nv.Data()})
			}
		}
	}
	return out
}

func (e *expandVariableOp) Reset() error {
	e.base = nil
	e.results = nil
	e.idx = 0
	return e.input.Reset()
}

// constructNamedPathOp builds a list value out of the addresses bound at
// the named symbols — a simplified stand-in for a real Path value type,
// adequate for RETURN/size() but not full path-function support.
type constructNamedPathOp struct {
	input   Operator
	symbols []string
	out     string
}

func (c *constructNamedPathOp) Open() error { return c.input.Open() }

func (c *constructNamedPathOp) Pull(frame *Frame) (bool, error) {
	ok, err := c.input.Pull(frame)
	if err != nil || !ok {
		return ok, err
	}
	items := make([]value.TypedValue, 0, len(c.symbols))
	for _, sym := range c.symbols {
		if b, ok := frame.Get(sym); ok {
			items = append(items, b.AsValue())
		}
	}
	frame.Set(c.out, ScalarBinding(value.ListValue(items)))
	return true, nil
}

func (c *constructNamedPathOp) Reset() error { return c.input.Reset() }

// edgeUniquenessOp enforces Cypher's no-repeat-edge rule: within one
// pattern, distinct relationship variables must bind to distinct edges.
type edgeUniquenessOp struct {
	input   Operator
	symbols []string
}

func (u *edgeUniquenessOp) Open() error { return u.input.Open() }

func (u *edgeUniquenessOp) Pull(frame *Frame) (bool, error) {
	for {
		ok, err := u.input.Pull(frame)
		if err != nil || !ok {
			return ok, err
		}
		if u.allDistinct(frame) {
			return true, nil
		}
	}
}

func (u *edgeUniquenessOp) allDistinct(frame *Frame) bool {
	seen := make(map[gid.Gid]struct{}, len(u.symbols))
	for _, sym := range u.symbols {
		b, ok := frame.Get(sym)
		if !ok || b.Kind != BindEdge {
			continue
		}
		if _, dup := seen[b.EdgeAddr.Gid]; dup {
			return false
		}
		seen[b.EdgeAddr.Gid] = struct{}{}
	}
	return true
}

func (u *edgeUniquenessOp) Reset() error { return u.input.Reset() }
