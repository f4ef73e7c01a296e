package predicate

import (
	"fmt"
	"math"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// ParseError reports a load-time predicate validation failure: unknown
// kind/op/agg, missing keys, and similar malformed-predicate cases are
// all fatal at load time.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "predicate: " + e.Msg }

// Parse decodes a canonical JSON predicate AST, rejecting the tree on the
// first violation encountered (fatal, not advisory — this intentionally
// diverges from a warnings-accumulator validator: an invariant file either
// loads completely or not at all).
func Parse(v jsonval.Value) (Node, error) {
	obj, ok := v.(jsonval.Object)
	if !ok {
		return nil, &ParseError{Msg: "predicate node must be an object"}
	}
	kindVal, ok := obj["kind"]
	if !ok {
		return nil, &ParseError{Msg: "missing 'kind'"}
	}
	kind, ok := kindVal.(jsonval.String)
	if !ok {
		return nil, &ParseError{Msg: "'kind' must be a string"}
	}

	switch string(kind) {
	case "cmp":
		return parseCmp(obj)
	case "and":
		return parseJunction(obj, func(ps []Node) Node { return And{Predicates: ps} })
	case "or":
		return parseJunction(obj, func(ps []Node) Node { return Or{Predicates: ps} })
	case "not":
		inner, ok := obj["predicate"]
		if !ok {
			return nil, &ParseError{Msg: "'not' missing 'predicate'"}
		}
		p, err := Parse(inner)
		if err != nil {
			return nil, err
		}
		return Not{Predicate: p}, nil
	case "forall":
		return parseForall(obj)
	case "aggregate":
		return parseAggregate(obj)
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unknown kind %q", kind)}
	}
}

func parseCmp(obj jsonval.Object) (Node, error) {
	op, err := parseCmpOp(obj)
	if err != nil {
		return nil, err
	}
	leftVal, ok := obj["left"]
	if !ok {
		return nil, &ParseError{Msg: "'cmp' missing 'left'"}
	}
	rightVal, ok := obj["right"]
	if !ok {
		return nil, &ParseError{Msg: "'cmp' missing 'right'"}
	}
	left, err := parseExpr(leftVal)
	if err != nil {
		return nil, err
	}
	right, err := parseExpr(rightVal)
	if err != nil {
		return nil, err
	}
	if ll, ok := left.(Literal); ok {
		if rl, ok := right.(Literal); ok {
			if err := checkStaticTypeMatch(ll.Value, rl.Value); err != nil {
				return nil, err
			}
		}
	}
	return Cmp{Op: op, Left: left, Right: right}, nil
}

// checkStaticTypeMatch rejects a comparison between two literal operands
// of incompatible JSON types, the one case says must be
// caught at load time ("where statically detectable"). Comparisons
// involving a field reference are necessarily dynamic and are checked at
// evaluation time instead (see eval.go).
func checkStaticTypeMatch(a, b jsonval.Value) error {
	if jsonval.TypeName(a) != jsonval.TypeName(b) {
		return &ParseError{Msg: fmt.Sprintf("mixed-type comparison: %s vs %s", jsonval.TypeName(a), jsonval.TypeName(b))}
	}
	return nil
}

func parseCmpOp(obj jsonval.Object) (CmpOp, error) {
	opVal, ok := obj["op"]
	if !ok {
		return "", &ParseError{Msg: "missing 'op'"}
	}
	opStr, ok := opVal.(jsonval.String)
	if !ok {
		return "", &ParseError{Msg: "'op' must be a string"}
	}
	switch CmpOp(opStr) {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return CmpOp(opStr), nil
	default:
		return "", &ParseError{Msg: fmt.Sprintf("unknown op %q", opStr)}
	}
}

func parseJunction(obj jsonval.Object, build func([]Node) Node) (Node, error) {
	predsVal, ok := obj["predicates"]
	if !ok {
		return nil, &ParseError{Msg: "missing 'predicates'"}
	}
	arr, ok := predsVal.(jsonval.Array)
	if !ok {
		return nil, &ParseError{Msg: "'predicates' must be an array"}
	}
	if len(arr) == 0 {
		return nil, &ParseError{Msg: "'predicates' must be non-empty"}
	}
	preds := make([]Node, 0, len(arr))
	for i, pv := range arr {
		p, err := Parse(pv)
		if err != nil {
			return nil, fmt.Errorf("predicates[%d]: %w", i, err)
		}
		preds = append(preds, p)
	}
	return build(preds), nil
}

func parseForall(obj jsonval.Object) (Node, error) {
	path, err := requireStringField(obj, "path")
	if err != nil {
		return nil, err
	}
	predVal, ok := obj["predicate"]
	if !ok {
		return nil, &ParseError{Msg: "'forall' missing 'predicate'"}
	}
	p, err := Parse(predVal)
	if err != nil {
		return nil, err
	}
	return Forall{Path: path, Predicate: p}, nil
}

func parseAggregate(obj jsonval.Object) (Node, error) {
	aggVal, ok := obj["agg"]
	if !ok {
		return nil, &ParseError{Msg: "'aggregate' missing 'agg'"}
	}
	aggStr, ok := aggVal.(jsonval.String)
	if !ok {
		return nil, &ParseError{Msg: "'agg' must be a string"}
	}
	switch AggKind(aggStr) {
	case AggSum, AggMin, AggMax, AggCount:
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unknown agg %q", aggStr)}
	}
	path, err := requireStringField(obj, "path")
	if err != nil {
		return nil, err
	}
	op, err := parseCmpOp(obj)
	if err != nil {
		return nil, err
	}
	valueVal, ok := obj["value"]
	if !ok {
		return nil, &ParseError{Msg: "'aggregate' missing 'value'"}
	}
	num, ok := valueVal.(jsonval.Number)
	if !ok {
		return nil, &ParseError{Msg: "'value' must be a number"}
	}
	if isNaNOrInf(float64(num)) {
		return nil, &ParseError{Msg: "'value' must be finite"}
	}
	return Aggregate{Agg: AggKind(aggStr), Path: path, Op: op, Value: float64(num)}, nil
}

func parseExpr(v jsonval.Value) (Expr, error) {
	if obj, ok := v.(jsonval.Object); ok {
		if kindVal, ok := obj["kind"]; ok {
			if kindStr, ok := kindVal.(jsonval.String); ok && string(kindStr) == "field" {
				path, err := requireStringField(obj, "path")
				if err != nil {
					return nil, err
				}
				return Field{Path: path}, nil
			}
		}
	}
	if num, ok := v.(jsonval.Number); ok && isNaNOrInf(float64(num)) {
		return nil, &ParseError{Msg: "numeric literal must be finite"}
	}
	return Literal{Value: v}, nil
}

func requireStringField(obj jsonval.Object, key string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", &ParseError{Msg: fmt.Sprintf("missing %q", key)}
	}
	s, ok := v.(jsonval.String)
	if !ok {
		return "", &ParseError{Msg: fmt.Sprintf("%q must be a string", key)}
	}
	return string(s), nil
}

func isNaNOrInf(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
