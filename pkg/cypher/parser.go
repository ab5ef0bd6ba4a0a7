package cypher

import (
	"fmt"

	"github.com/arefrazavi/memgraph/pkg/value"
)

// Parse lexes and parses a single Cypher statement.
func Parse(src string) (Query, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return Query{}, err
	}
	p := &parser{toks: toks}
	return p.parseQuery()
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokKeyword && t.text == kw
}

func (p *parser) atPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) atEOF() bool { return p.peek().kind == tokEOF }

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return fmt.Errorf("cypher: expected keyword %s, got %q", kw, p.peek().text)
	}
	p.next()
	return nil
}

func (p *parser) expectPunct(s string) error {
	if !p.atPunct(s) {
		return fmt.Errorf("cypher: expected %q, got %q", s, p.peek().text)
	}
	p.next()
	return nil
}

func (p *parser) parseQuery() (Query, error) {
	var q Query
	for !p.atEOF() {
		clause, err := p.parseClause()
		if err != nil {
			return Query{}, err
		}
		q.Clauses = append(q.Clauses, clause)
	}
	return q, nil
}

func (p *parser) parseClause() (Clause, error) {
	switch {
	case p.atKeyword("OPTIONAL"):
		p.next()
		if err := p.expectKeyword("MATCH"); err != nil {
			return Clause{}, err
		}
		return p.parseMatch(true)
	case p.atKeyword("MATCH"):
		p.next()
		return p.parseMatch(false)
	case p.atKeyword("CREATE"):
		p.next()
		patterns, err := p.parsePatternList()
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: CCreate, Patterns: patterns}, nil
	case p.atKeyword("MERGE"):
		p.next()
		return p.parseMerge()
	case p.atKeyword("SET"):
		p.next()
		items, err := p.parseSetItems()
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: CSet, SetItems: items}, nil
	case p.atKeyword("DETACH"):
		p.next()
		if err := p.expectKeyword("DELETE"); err != nil {
			return Clause{}, err
		}
		vars, err := p.parseIdentList()
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: CDelete, DeleteVars: vars, Detach: true}, nil
	case p.atKeyword("DELETE"):
		p.next()
		vars, err := p.parseIdentList()
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: CDelete, DeleteVars: vars}, nil
	case p.atKeyword("REMOVE"):
		p.next()
		items, err := p.parseRemoveItems()
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: CRemove, RemoveItems: items}, nil
	case p.atKeyword("UNWIND"):
		p.next()
		listExpr, err := p.parseExpr()
		if err != nil {
			return Clause{}, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return Clause{}, err
		}
		sym := p.next().text
		return Clause{Kind: CUnwind, UnwindList: listExpr, UnwindAs: sym}, nil
	case p.atKeyword("WITH"):
		p.next()
		return p.parseProjection(CWith)
	case p.atKeyword("RETURN"):
		p.next()
		return p.parseProjection(CReturn)
	default:
		return Clause{}, fmt.Errorf("cypher: unexpected token %q", p.peek().text)
	}
}

func (p *parser) parseMatch(optional bool) (Clause, error) {
	patterns, err := p.parsePatternList()
	if err != nil {
		return Clause{}, err
	}
	c := Clause{Kind: CMatch, Patterns: patterns, Optional: optional}
	if p.atKeyword("WHERE") {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return Clause{}, err
		}
		c.Where = w
	}
	return c, nil
}

func (p *parser) parseMerge() (Clause, error) {
	patterns, err := p.parsePatternList()
	if err != nil {
		return Clause{}, err
	}
	c := Clause{Kind: CMerge, Patterns: patterns}
	for p.atKeyword("ON") {
		p.next()
		if p.atKeyword("CREATE") {
			p.next()
			items, err := p.parseSetItems()
			if err != nil {
				return Clause{}, err
			}
			c.OnCreate = items
		} else if p.atKeyword("MATCH") {
			p.next()
			items, err := p.parseSetItems()
			if err != nil {
				return Clause{}, err
			}
			c.OnMatch = items
		}
	}
	return c, nil
}

func (p *parser) parseProjection(kind ClauseKind) (Clause, error) {
	c := Clause{Kind: kind}
	if p.atKeyword("DISTINCT") {
		p.next()
		c.Distinct = true
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return Clause{}, err
	}
	c.Items = items

	if kind == CWith && p.atKeyword("WHERE") {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return Clause{}, err
		}
		c.Where = w
	}
	if p.atKeyword("ORDER") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return Clause{}, err
		}
		keys, err := p.parseOrderItems()
		if err != nil {
			return Clause{}, err
		}
		c.OrderBy = keys
	}
	if p.atKeyword("SKIP") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return Clause{}, err
		}
		c.Skip = e
	}
	if p.atKeyword("LIMIT") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return Clause{}, err
		}
		c.Limit = e
	}
	return c, nil
}

func (p *parser) parseReturnItems() ([]ReturnItem, error) {
	var items []ReturnItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Expr: e}
		if p.atKeyword("AS") {
			p.next()
			item.As = p.next().text
		}
		items = append(items, item)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseOrderItems() ([]OrderItem, error) {
	var items []OrderItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: e}
		if p.atKeyword("DESC") {
			p.next()
			item.Descending = true
		} else if p.atKeyword("ASC") {
			p.next()
		}
		items = append(items, item)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	var names []string
	for {
		if p.peek().kind != tokIdent {
			return nil, fmt.Errorf("cypher: expected identifier, got %q", p.peek().text)
		}
		names = append(names, p.next().text)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return names, nil
}

func (p *parser) parseSetItems() ([]SetItem, error) {
	var items []SetItem
	for {
		if p.peek().kind != tokIdent {
			return nil, fmt.Errorf("cypher: expected identifier in SET, got %q", p.peek().text)
		}
		variable := p.next().text
		if p.atPunct(":") {
			// n:Label[:Label2]
			var labels []string
			for p.atPunct(":") {
				p.next()
				labels = append(labels, p.next().text)
			}
			items = append(items, SetItem{Variable: variable, Labels: labels})
		} else if p.atPunct(".") {
			p.next()
			prop := p.next().text
			if err := p.expectPunct("="); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, SetItem{Variable: variable, Property: prop, Expr: e})
		} else if p.atPunct("=") {
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, SetItem{Variable: variable, Expr: e})
		} else {
			return nil, fmt.Errorf("cypher: malformed SET item after %q", variable)
		}
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseRemoveItems() ([]RemoveItem, error) {
	var items []RemoveItem
	for {
		if p.peek().kind != tokIdent {
			return nil, fmt.Errorf("cypher: expected identifier in REMOVE, got %q", p.peek().text)
		}
		variable := p.next().text
		if p.atPunct(":") {
			var labels []string
			for p.atPunct(":") {
				p.next()
				labels = append(labels, p.next().text)
			}
			items = append(items, RemoveItem{Variable: variable, Labels: labels})
		} else if p.atPunct(".") {
			p.next()
			prop := p.next().text
			items = append(items, RemoveItem{Variable: variable, Property: prop})
		} else {
			return nil, fmt.Errorf("cypher: malformed REMOVE item after %q", variable)
		}
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return items, nil
}

// parsePatternList parses a comma-separated list of patterns.
func (p *parser) parsePatternList() ([]PatternElement, error) {
	var patterns []PatternElement
	for {
		elem, err := p.parsePatternElement()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, elem)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return patterns, nil
}

func (p *parser) parsePatternElement() (PatternElement, error) {
	var elem PatternElement
	n, err := p.parseNodePattern()
	if err != nil {
		return elem, err
	}
	elem.Nodes = append(elem.Nodes, n)

	for p.atPunct("-") || p.atPunct("<") {
		rel, err := p.parseRelPattern()
		if err != nil {
			return elem, err
		}
		elem.Rels = append(elem.Rels, rel)
		n, err := p.parseNodePattern()
		if err != nil {
			return elem, err
		}
		elem.Nodes = append(elem.Nodes, n)
	}
	return elem, nil
}

func (p *parser) parseNodePattern() (NodePattern, error) {
	var n NodePattern
	if err := p.expectPunct("("); err != nil {
		return n, err
	}
	if p.peek().kind == tokIdent {
		n.Variable = p.next().text
	}
	for p.atPunct(":") {
		p.next()
		n.Labels = append(n.Labels, p.next().text)
	}
	if p.atPunct("{") {
		props, err := p.parsePropertyMap()
		if err != nil {
			return n, err
		}
		n.Properties = props
	}
	if err := p.expectPunct(")"); err != nil {
		return n, err
	}
	return n, nil
}

func (p *parser) parseRelPattern() (RelPattern, error) {
	var rel RelPattern
	leftArrow := false
	if p.atPunct("<") {
		p.next()
		leftArrow = true
	}
	if err := p.expectPunct("-"); err != nil {
		return rel, err
	}
	hasBracket := p.atPunct("[")
	if hasBracket {
		p.next()
		if p.peek().kind == tokIdent {
			rel.Variable = p.next().text
		}
		for p.atPunct(":") {
			p.next()
			rel.Types = append(rel.Types, p.next().text)
			for p.atPunct("|") {
				p.next()
				rel.Types = append(rel.Types, p.next().text)
			}
		}
		if p.atPunct("*") {
			p.next()
			rel.Variable_ = true
			rel.MinHops, rel.MaxHops = 1, -1
			if p.peek().kind == tokNumber {
				rel.MinHops = int(mustNumber(p.next().text))
			}
			if p.atPunct("..") {
				p.next()
				if p.peek().kind == tokNumber {
					rel.MaxHops = int(mustNumber(p.next().text))
				}
			} else if rel.MinHops > 0 {
				rel.MaxHops = rel.MinHops
			}
		}
		if p.atPunct("{") {
			props, err := p.parsePropertyMap()
			if err != nil {
				return rel, err
			}
			rel.Properties = props
		}
		if err := p.expectPunct("]"); err != nil {
			return rel, err
		}
	}
	if err := p.expectPunct("-"); err != nil {
		return rel, err
	}
	rightArrow := false
	if p.atPunct(">") {
		p.next()
		rightArrow = true
	}
	switch {
	case leftArrow && !rightArrow:
		rel.Direction = In
	case rightArrow && !leftArrow:
		rel.Direction = Out
	default:
		rel.Direction = Either
	}
	return rel, nil
}

func mustNumber(s string) float64 {
	f, _ := parseNumberLiteral(s)
	return f
}

func (p *parser) parsePropertyMap() (map[string]Expr, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	m := make(map[string]Expr)
	if p.atPunct("}") {
		p.next()
		return m, nil
	}
	for {
		key := p.next().text
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m[key] = e
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return m, nil
}

// --- expressions, precedence climbing, loosest to tightest binding ---

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseXor()
	if err != nil {
		return Expr{}, err
	}
	for p.atKeyword("OR") {
		p.next()
		right, err := p.parseXor()
		if err != nil {
			return Expr{}, err
		}
		left = Expr{Kind: BinaryOp, Op: "OR", Left: &left, Right: &right}
	}
	return left, nil
}

func (p *parser) parseXor() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return Expr{}, err
	}
	for p.atKeyword("XOR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return Expr{}, err
		}
		left = Expr{Kind: BinaryOp, Op: "XOR", Left: &left, Right: &right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return Expr{}, err
	}
	for p.atKeyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return Expr{}, err
		}
		left = Expr{Kind: BinaryOp, Op: "AND", Left: &left, Right: &right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.atKeyword("NOT") {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: UnaryOp, Op: "NOT", Right: &operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return Expr{}, err
	}
	for {
		t := p.peek()
		if t.kind == tokPunct && comparisonOps[t.text] {
			op := p.next().text
			right, err := p.parseAdditive()
			if err != nil {
				return Expr{}, err
			}
			left = Expr{Kind: BinaryOp, Op: op, Left: &left, Right: &right}
			continue
		}
		if p.atKeyword("IN") {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return Expr{}, err
			}
			left = Expr{Kind: BinaryOp, Op: "IN", Left: &left, Right: &right}
			continue
		}
		if p.atKeyword("IS") {
			p.next()
			if p.atKeyword("NOT") {
				p.next()
				if err := p.expectKeyword("NULL"); err != nil {
					return Expr{}, err
				}
				left = Expr{Kind: UnaryOp, Op: "IS NOT NULL", Right: &left}
				continue
			}
			if err := p.expectKeyword("NULL"); err != nil {
				return Expr{}, err
			}
			left = Expr{Kind: UnaryOp, Op: "IS NULL", Right: &left}
			continue
		}
		if p.atKeyword("STARTS") {
			p.next()
			if err := p.expectKeyword("WITH"); err != nil {
				return Expr{}, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return Expr{}, err
			}
			left = Expr{Kind: BinaryOp, Op: "STARTS WITH", Left: &left, Right: &right}
			continue
		}
		if p.atKeyword("ENDS") {
			p.next()
			if err := p.expectKeyword("WITH"); err != nil {
				return Expr{}, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return Expr{}, err
			}
			left = Expr{Kind: BinaryOp, Op: "ENDS WITH", Left: &left, Right: &right}
			continue
		}
		if p.atKeyword("CONTAINS") {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return Expr{}, err
			}
			left = Expr{Kind: BinaryOp, Op: "CONTAINS", Left: &left, Right: &right}
			continue
		}
		break
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return Expr{}, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return Expr{}, err
		}
		left = Expr{Kind: BinaryOp, Op: op, Left: &left, Right: &right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Expr{}, err
	}
	for p.atPunct("*") || p.atPunct("/") || p.atPunct("%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		left = Expr{Kind: BinaryOp, Op: op, Left: &left, Right: &right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.atPunct("-") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: UnaryOp, Op: "-", Right: &operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return Expr{}, err
	}
	for p.atPunct(".") {
		p.next()
		key := p.next().text
		e = Expr{Kind: Property, Target: e.Name, Key: key}
	}
	return e, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch {
	case t.kind == tokNumber:
		p.next()
		f, _ := parseNumberLiteral(t.text)
		if isIntegral(t.text) {
			return Expr{Kind: Literal, Value: value.IntValue(int64(f))}, nil
		}
		return Expr{Kind: Literal, Value: value.FloatValue(f)}, nil
	case t.kind == tokString:
		p.next()
		return Expr{Kind: Literal, Value: value.StringValue(t.text)}, nil
	case t.kind == tokParam:
		p.next()
		return Expr{Kind: Parameter, Name: t.text}, nil
	case t.kind == tokKeyword && t.text == "TRUE":
		p.next()
		return Expr{Kind: Literal, Value: value.BoolValue(true)}, nil
	case t.kind == tokKeyword && t.text == "FALSE":
		p.next()
		return Expr{Kind: Literal, Value: value.BoolValue(false)}, nil
	case t.kind == tokKeyword && t.text == "NULL":
		p.next()
		return Expr{Kind: Literal, Value: value.NullValue()}, nil
	case t.kind == tokPunct && t.text == "(":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return Expr{}, err
		}
		return e, nil
	case t.kind == tokPunct && t.text == "[":
		return p.parseListLiteral()
	case t.kind == tokPunct && t.text == "{":
		return p.parseMapLiteral()
	case t.kind == tokIdent:
		p.next()
		if p.atPunct("(") {
			return p.parseFunctionCall(t.text)
		}
		return Expr{Kind: Variable, Name: t.text}, nil
	default:
		return Expr{}, fmt.Errorf("cypher: unexpected token %q in expression", t.text)
	}
}

func isIntegral(s string) bool {
	for _, r := range s {
		if r == '.' {
			return false
		}
	}
	return true
}

func (p *parser) parseListLiteral() (Expr, error) {
	if err := p.expectPunct("["); err != nil {
		return Expr{}, err
	}
	var items []Expr
	if !p.atPunct("]") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return Expr{}, err
			}
			items = append(items, e)
			if p.atPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return Expr{}, err
	}
	return Expr{Kind: ListLiteral, Args: items}, nil
}

func (p *parser) parseMapLiteral() (Expr, error) {
	m, err := p.parsePropertyMap()
	if err != nil {
		return Expr{}, err
	}
	return Expr{Kind: MapLiteral, Map: m}, nil
}

func (p *parser) parseFunctionCall(name string) (Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return Expr{}, err
	}
	var args []Expr
	if p.atKeyword("DISTINCT") {
		p.next() // count(DISTINCT x) — distinctness is dropped, aggregation still counts correctly for single-column use
	}
	if !p.atPunct(")") {
		for {
			if p.atPunct("*") {
				p.next() // count(*) — no per-row expression to evaluate, just count rows
				args = append(args, Expr{Kind: Literal, Value: value.NullValue()})
				break
			}
			e, err := p.parseExpr()
			if err != nil {
				return Expr{}, err
			}
			args = append(args, e)
			if p.atPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return Expr{}, err
	}
	return Expr{Kind: FunctionCall, Name: name, Args: args}, nil
}
