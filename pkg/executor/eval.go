package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/arefrazavi/memgraph/pkg/cypher"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// EvaluationContext is the extra state expressions may read beyond the
// current frame: bound query parameters and a fixed timestamp for
// functions like timestamp() so every evaluation within one query sees the
// same instant.
type EvaluationContext struct {
	Timestamp time.Time
	Params    map[string]value.TypedValue
}

// Eval evaluates e against frame and ctx. Property access on an unbound
// variable, an unknown parameter, or a call to an undefined function all
// surface as errs.ErrQuery, the semantic-error class the planner/executor
// share.
func Eval(e cypher.Expr, frame *Frame, ctx *EvaluationContext) (value.TypedValue, error) {
	switch e.Kind {
	case cypher.Literal:
		return e.Value, nil
	case cypher.Parameter:
		v, ok := ctx.Params[e.Name]
		if !ok {
			return value.TypedValue{}, fmt.Errorf("%w: unbound parameter $%s", errs.ErrQuery, e.Name)
		}
		return v, nil
	case cypher.Variable:
		b, ok := frame.Get(e.Name)
		if !ok {
			return value.TypedValue{}, fmt.Errorf("%w: unbound identifier %s", errs.ErrQuery, e.Name)
		}
		return b.AsValue(), nil
	case cypher.Property:
		return evalProperty(e, frame)
	case cypher.ListLiteral:
		items := make([]value.TypedValue, 0, len(e.Args))
		for _, a := range e.Args {
			v, err := Eval(a, frame, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			items = append(items, v)
		}
		return value.ListValue(items), nil
	case cypher.MapLiteral:
		m := make(map[string]value.TypedValue, len(e.Map))
		for k, sub := range e.Map {
			v, err := Eval(sub, frame, ctx)
			if err != nil {
				return value.TypedValue{}, err
			}
			m[k] = v
		}
		return value.MapValue(m), nil
	case cypher.UnaryOp:
		return evalUnary(e, frame, ctx)
	case cypher.BinaryOp:
		return evalBinary(e, frame, ctx)
	case cypher.FunctionCall:
		return evalFunction(e, frame, ctx)
	default:
		return value.TypedValue{}, fmt.Errorf("%w: unsupported expression kind", errs.ErrQuery)
	}
}

func evalProperty(e cypher.Expr, frame *Frame) (value.TypedValue, error) {
	b, ok := frame.Get(e.Target)
	if !ok {
		return value.TypedValue{}, fmt.Errorf("%w: unbound identifier %s", errs.ErrQuery, e.Target)
	}
	var props map[string]value.TypedValue
	switch b.Kind {
	case BindVertex:
		props = b.Vertex.Properties
	case BindEdge:
		props = b.Edge.Properties
	case BindScalar:
		if b.Scalar.Kind == value.MapKind {
			props = b.Scalar.M
		}
	}
	if v, ok := props[e.Key]; ok {
		return v, nil
	}
	return value.NullValue(), nil
}

// truthValue splits v into its boolean value and a NULL flag, so the
// evaluator can apply Cypher's three-valued boolean logic: NULL propagates
// through AND/OR rather than behaving as false.
func truthValue(v value.TypedValue) (b bool, isNull bool) {
	if v.IsNull() {
		return false, true
	}
	return v.Truthy(), false
}

func evalUnary(e cypher.Expr, frame *Frame, ctx *EvaluationContext) (value.TypedValue, error) {
	right, err := Eval(*e.Right, frame, ctx)
	if err != nil {
		return value.TypedValue{}, err
	}
	switch e.Op {
	case "-":
		if right.IsNull() {
			return value.NullValue(), nil
		}
		if right.Kind == value.Int {
			return value.IntValue(-right.I), nil
		}
		return value.FloatValue(-right.F), nil
	case "NOT":
		b, isNull := truthValue(right)
		if isNull {
			return value.NullValue(), nil
		}
		return value.BoolValue(!b), nil
	case "IS NULL":
		return value.BoolValue(right.IsNull()), nil
	case "IS NOT NULL":
		return value.BoolValue(!right.IsNull()), nil
	default:
		return value.TypedValue{}, fmt.Errorf("%w: unknown unary operator %s", errs.ErrQuery, e.Op)
	}
}

func evalBinary(e cypher.Expr, frame *Frame, ctx *EvaluationContext) (value.TypedValue, error) {
	// AND/OR short-circuit and implement three-valued logic: AND yields
	// false as soon as either side is false even if the other is NULL;
	// OR yields true as soon as either side is true even if the other is
	// NULL. Otherwise a NULL operand makes the result NULL.
	if e.Op == "AND" || e.Op == "OR" {
		left, err := Eval(*e.Left, frame, ctx)
		if err != nil {
			return value.TypedValue{}, err
		}
		lb, lNull := truthValue(left)
		if e.Op == "AND" && !lNull && !lb {
			return value.BoolValue(false), nil
		}
		if e.Op == "OR" && !lNull && lb {
			return value.BoolValue(true), nil
		}
		right, err := Eval(*e.Right, frame, ctx)
		if err != nil {
			return value.TypedValue{}, err
		}
		rb, rNull := truthValue(right)
		if e.Op == "AND" {
			if !rNull && !rb {
				return value.BoolValue(false), nil
			}
			if lNull || rNull {
				return value.NullValue(), nil
			}
			return value.BoolValue(lb && rb), nil
		}
		if !rNull && rb {
			return value.BoolValue(true), nil
		}
		if lNull || rNull {
			return value.NullValue(), nil
		}
		return value.BoolValue(lb || rb), nil
	}

	left, err := Eval(*e.Left, frame, ctx)
	if err != nil {
		return value.TypedValue{}, err
	}
	right, err := Eval(*e.Right, frame, ctx)
	if err != nil {
		return value.TypedValue{}, err
	}

	switch e.Op {
	case "XOR":
		lb, lNull := truthValue(left)
		rb, rNull := truthValue(right)
		if lNull || rNull {
			return value.NullValue(), nil
		}
		return value.BoolValue(lb != rb), nil
	case "=":
		if left.IsNull() || right.IsNull() {
			return value.NullValue(), nil
		}
		return value.BoolValue(value.Equal(left, right)), nil
	case "<>":
		if left.IsNull() || right.IsNull() {
			return value.NullValue(), nil
		}
		return value.BoolValue(!value.Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		if left.IsNull() || right.IsNull() {
			return value.NullValue(), nil
		}
		if !value.Orderable(left, right) {
			return value.NullValue(), nil
		}
		c := value.Compare(left, right)
		switch e.Op {
		case "<":
			return value.BoolValue(c < 0), nil
		case "<=":
			return value.BoolValue(c <= 0), nil
		case ">":
			return value.BoolValue(c > 0), nil
		default:
			return value.BoolValue(c >= 0), nil
		}
	case "+", "-", "*", "/", "%":
		return evalArithmetic(e.Op, left, right)
	case "IN":
		if right.Kind != value.ListKind {
			return value.TypedValue{}, fmt.Errorf("%w: IN requires a list operand", errs.ErrQuery)
		}
		for _, item := range right.L {
			if value.Equal(left, item) {
				return value.BoolValue(true), nil
			}
		}
		return value.BoolValue(false), nil
	case "STARTS WITH":
		return stringPredicate(left, right, strings.HasPrefix)
	case "ENDS WITH":
		return stringPredicate(left, right, strings.HasSuffix)
	case "CONTAINS":
		return stringPredicate(left, right, strings.Contains)
	default:
		return value.TypedValue{}, fmt.Errorf("%w: unknown binary operator %s", errs.ErrQuery, e.Op)
	}
}

func stringPredicate(left, right value.TypedValue, f func(s, substr string) bool) (value.TypedValue, error) {
	if left.IsNull() || right.IsNull() {
		return value.NullValue(), nil
	}
	return value.BoolValue(f(left.S, right.S)), nil
}

func evalArithmetic(op string, left, right value.TypedValue) (value.TypedValue, error) {
	if left.IsNull() || right.IsNull() {
		return value.NullValue(), nil
	}
	if op == "+" && (left.Kind == value.String || right.Kind == value.String) {
		return value.StringValue(left.String() + right.String()), nil
	}
	if left.Kind == value.Int && right.Kind == value.Int {
		var r int64
		switch op {
		case "+":
			r = left.I + right.I
		case "-":
			r = left.I - right.I
		case "*":
			r = left.I * right.I
		case "/":
			if right.I == 0 {
				return value.TypedValue{}, fmt.Errorf("%w: division by zero", errs.ErrQuery)
			}
			r = left.I / right.I
		case "%":
			if right.I == 0 {
				return value.TypedValue{}, fmt.Errorf("%w: modulo by zero", errs.ErrQuery)
			}
			r = left.I % right.I
		}
		return value.IntValue(r), nil
	}
	lf, rf := asFloat(left), asFloat(right)
	var r float64
	switch op {
	case "+":
		r = lf + rf
	case "-":
		r = lf - rf
	case "*":
		r = lf * rf
	case "/":
		r = lf / rf
	case "%":
		return value.TypedValue{}, fmt.Errorf("%w: modulo requires integer operands", errs.ErrQuery)
	}
	return value.FloatValue(r), nil
}

func asFloat(v value.TypedValue) float64 {
	if v.Kind == value.Int {
		return float64(v.I)
	}
	return v.F
}

func evalFunction(e cypher.Expr, frame *Frame, ctx *EvaluationContext) (value.TypedValue, error) {
	args := make([]value.TypedValue, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := Eval(a, frame, ctx)
		if err != nil {
			return value.TypedValue{}, err
		}
		args = append(args, v)
	}
	switch strings.ToLower(e.Name) {
	case "id":
		if len(args) != 1 {
			return value.TypedValue{}, fmt.Errorf("%w: id() takes one argument", errs.ErrQuery)
		}
		return idOf(e.Args[0], frame)
	case "labels":
		if len(args) != 1 || e.Args[0].Kind != cypher.Variable {
			return value.TypedValue{}, fmt.Errorf("%w: labels() takes a node variable", errs.ErrQuery)
		}
		b, _ := frame.Get(e.Args[0].Name)
		items := make([]value.TypedValue, len(b.Vertex.Labels))
		for i, l := range b.Vertex.Labels {
			items[i] = value.StringValue(l)
		}
		return value.ListValue(items), nil
	case "type":
		if len(args) != 1 || e.Args[0].Kind != cypher.Variable {
			return value.TypedValue{}, fmt.Errorf("%w: type() takes a relationship variable", errs.ErrQuery)
		}
		b, _ := frame.Get(e.Args[0].Name)
		return value.StringValue(b.Edge.Type), nil
	case "timestamp":
		return value.IntValue(ctx.Timestamp.UnixMilli()), nil
	case "tostring":
		if len(args) != 1 {
			return value.TypedValue{}, fmt.Errorf("%w: toString() takes one argument", errs.ErrQuery)
		}
		return value.StringValue(args[0].String()), nil
	case "toint", "tointeger":
		if len(args) != 1 {
			return value.TypedValue{}, fmt.Errorf("%w: toInteger() takes one argument", errs.ErrQuery)
		}
		return toInt(args[0])
	case "tofloat":
		if len(args) != 1 {
			return value.TypedValue{}, fmt.Errorf("%w: toFloat() takes one argument", errs.ErrQuery)
		}
		return value.FloatValue(asFloat(args[0])), nil
	case "size":
		if len(args) != 1 {
			return value.TypedValue{}, fmt.Errorf("%w: size() takes one argument", errs.ErrQuery)
		}
		switch args[0].Kind {
		case value.ListKind:
			return value.IntValue(int64(len(args[0].L))), nil
		case value.String:
			return value.IntValue(int64(len(args[0].S))), nil
		default:
			return value.NullValue(), nil
		}
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.NullValue(), nil
	case "count", "sum", "avg", "min", "max", "collect":
		return value.TypedValue{}, fmt.Errorf("%w: %s() is an aggregate and must appear in a WITH/RETURN aggregation", errs.ErrQuery, e.Name)
	default:
		return value.TypedValue{}, fmt.Errorf("%w: unknown function %s", errs.ErrQuery, e.Name)
	}
}

func idOf(arg cypher.Expr, frame *Frame) (value.TypedValue, error) {
	if arg.Kind != cypher.Variable {
		return value.TypedValue{}, fmt.Errorf("%w: id() requires a variable", errs.ErrQuery)
	}
	b, ok := frame.Get(arg.Name)
	if !ok {
		return value.TypedValue{}, fmt.Errorf("%w: unbound identifier %s", errs.ErrQuery, arg.Name)
	}
	switch b.Kind {
	case BindVertex:
		return value.IntValue(int64(b.VertexAddr.Gid)), nil
	case BindEdge:
		return value.IntValue(int64(b.EdgeAddr.Gid)), nil
	default:
		return value.TypedValue{}, fmt.Errorf("%w: id() requires a node or relationship", errs.ErrQuery)
	}
}

func toInt(v value.TypedValue) (value.TypedValue, error) {
	switch v.Kind {
	case value.Int:
		return v, nil
	case value.Float:
		return value.IntValue(int64(v.F)), nil
	case value.String:
		var n int64
		if _, err := fmt.Sscanf(v.S, "%d", &n); err != nil {
			return value.TypedValue{}, fmt.Errorf("%w: toInteger(): not an integer %q", errs.ErrQuery, v.S)
		}
		return value.IntValue(n), nil
	default:
		return value.TypedValue{}, fmt.Errorf("%w: toInteger(): unsupported type", errs.ErrQuery)
	}
}
