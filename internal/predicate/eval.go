package predicate

import (
	"fmt"
	"math"
	"strings"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// EvalError is a runtime (not load-time) evaluation failure — e.g. a
// cmp field path that does not resolve to exactly one value, a mixed-type
// comparison, or min/max over an empty set.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string { return "predicate: eval: " + e.Msg }

// context carries the observation root and any forall bindings currently
// in scope, keyed by the exact path string that introduced the binding.
type context struct {
	root     jsonval.Value
	bound    map[string]jsonval.Value
	concrete map[string]string
	detail   *FailureDetail
}

// FailureDetail names the first concrete field and value responsible for
// a failing evaluation, used to render a deterministic failure message
// (e.g. "negative balance detected: balances.bob=-1").
type FailureDetail struct {
	Path  string
	Value jsonval.Value
}

// Eval evaluates pred against observation and returns its boolean result.
func Eval(pred Node, observation jsonval.Value) (bool, error) {
	ok, _, err := EvalDetail(pred, observation)
	return ok, err
}

// EvalDetail behaves like Eval but additionally returns the first
// concrete field/value responsible for a false result, if any was
// identified.
func EvalDetail(pred Node, observation jsonval.Value) (bool, *FailureDetail, error) {
	ctx := &context{root: observation, bound: map[string]jsonval.Value{}, concrete: map[string]string{}}
	ok, err := evalNode(pred, ctx)
	return ok, ctx.detail, err
}

func evalNode(n Node, ctx *context) (bool, error) {
	switch node := n.(type) {
	case Cmp:
		return evalCmp(node, ctx)
	case And:
		for _, p := range node.Predicates {
			ok, err := evalNode(p, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, p := range node.Predicates {
			ok, err := evalNode(p, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := evalNode(node.Predicate, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case Forall:
		return evalForall(node, ctx)
	case Aggregate:
		return evalAggregate(node, ctx)
	default:
		return false, &EvalError{Msg: fmt.Sprintf("unknown node type %T", n)}
	}
}

func evalForall(node Forall, ctx *context) (bool, error) {
	elems, paths, err := jsonval.ResolveWithPaths(ctx.root, jsonval.ParsePath(node.Path))
	if err != nil {
		return false, err
	}
	for i, elem := range elems {
		inner := &context{root: ctx.root, bound: copyBound(ctx.bound), concrete: copyBound2(ctx.concrete)}
		inner.bound[node.Path] = elem
		inner.concrete[node.Path] = paths[i]
		ok, err := evalNode(node.Predicate, inner)
		if err != nil {
			return false, err
		}
		if !ok {
			if inner.detail == nil {
				inner.detail = &FailureDetail{Path: paths[i], Value: elem}
			}
			ctx.detail = inner.detail
			return false, nil
		}
	}
	return true, nil
}

func copyBound(b map[string]jsonval.Value) map[string]jsonval.Value {
	out := make(map[string]jsonval.Value, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func copyBound2(b map[string]string) map[string]string {
	out := make(map[string]string, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func evalCmp(node Cmp, ctx *context) (bool, error) {
	lv, err := evalExpr(node.Left, ctx)
	if err != nil {
		return false, err
	}
	rv, err := evalExpr(node.Right, ctx)
	if err != nil {
		return false, err
	}
	ok, err := compare(node.Op, lv, rv)
	if err != nil {
		return false, err
	}
	if !ok && ctx.detail == nil {
		if f, isField := node.Left.(Field); isField {
			ctx.detail = &FailureDetail{Path: concretePath(ctx, f.Path), Value: lv}
		} else if f, isField := node.Right.(Field); isField {
			ctx.detail = &FailureDetail{Path: concretePath(ctx, f.Path), Value: rv}
		}
	}
	return ok, nil
}

// boundPrefix finds the longest key in ctx.bound that is either an exact
// match for path or a dotted-prefix of it (e.g. bound key "sessions.*"
// matches path "sessions.*.active" with suffix "active"). Ties are
// resolved by preferring the longest prefix, which is deterministic
// since a Forall's own bound keys never collide in length once nested
// (each nesting level strictly extends the parent's path).
func boundPrefix(ctx *context, path string) (key string, suffix string, ok bool) {
	if _, exact := ctx.bound[path]; exact {
		return path, "", true
	}
	best := ""
	for k := range ctx.bound {
		if len(k) > len(best) && strings.HasPrefix(path, k+".") {
			best = k
		}
	}
	if best == "" {
		return "", "", false
	}
	return best, strings.TrimPrefix(path, best+"."), true
}

func concretePath(ctx *context, path string) string {
	if c, ok := ctx.concrete[path]; ok {
		return c
	}
	if key, suffix, ok := boundPrefix(ctx, path); ok && suffix != "" {
		if c, ok := ctx.concrete[key]; ok {
			return c + "." + suffix
		}
	}
	return path
}

func evalExpr(e Expr, ctx *context) (jsonval.Value, error) {
	switch expr := e.(type) {
	case Literal:
		return expr.Value, nil
	case Field:
		if key, suffix, ok := boundPrefix(ctx, expr.Path); ok {
			bound := ctx.bound[key]
			if suffix == "" {
				return bound, nil
			}
			vals, err := jsonval.Resolve(bound, jsonval.ParsePath(suffix))
			if err != nil {
				return nil, err
			}
			if len(vals) != 1 {
				return nil, &EvalError{Msg: fmt.Sprintf("path %q must resolve to exactly one value, got %d", expr.Path, len(vals))}
			}
			return vals[0], nil
		}
		vals, err := jsonval.Resolve(ctx.root, jsonval.ParsePath(expr.Path))
		if err != nil {
			return nil, err
		}
		if len(vals) != 1 {
			return nil, &EvalError{Msg: fmt.Sprintf("path %q must resolve to exactly one value, got %d", expr.Path, len(vals))}
		}
		return vals[0], nil
	default:
		return nil, &EvalError{Msg: fmt.Sprintf("unknown expr type %T", e)}
	}
}

func compare(op CmpOp, a, b jsonval.Value) (bool, error) {
	if jsonval.TypeName(a) != jsonval.TypeName(b) {
		return false, &EvalError{Msg: fmt.Sprintf("mixed-type comparison at runtime: %s vs %s", jsonval.TypeName(a), jsonval.TypeName(b))}
	}
	switch op {
	case OpEq:
		return jsonval.Equal(a, b), nil
	case OpNe:
		return !jsonval.Equal(a, b), nil
	case OpLt, OpLte, OpGt, OpGte:
		an, ok := a.(jsonval.Number)
		if !ok {
			return false, &EvalError{Msg: fmt.Sprintf("operator %q requires numeric operands, got %s", op, jsonval.TypeName(a))}
		}
		bn := b.(jsonval.Number)
		if err := rejectNaN(float64(an), float64(bn)); err != nil {
			return false, err
		}
		switch op {
		case OpLt:
			return an < bn, nil
		case OpLte:
			return an <= bn, nil
		case OpGt:
			return an > bn, nil
		case OpGte:
			return an >= bn, nil
		}
	}
	return false, &EvalError{Msg: fmt.Sprintf("unhandled op %q", op)}
}

func rejectNaN(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) {
			return &EvalError{Msg: "NaN operand in numeric comparison"}
		}
	}
	return nil
}

func evalAggregate(node Aggregate, ctx *context) (bool, error) {
	elems, err := jsonval.Resolve(ctx.root, jsonval.ParsePath(node.Path))
	if err != nil {
		return false, err
	}

	var result float64
	switch node.Agg {
	case AggCount:
		result = float64(len(elems))
	case AggSum:
		for _, e := range elems {
			n, ok := e.(jsonval.Number)
			if !ok {
				return false, &EvalError{Msg: fmt.Sprintf("aggregate sum over non-numeric element at %q", node.Path)}
			}
			result += float64(n)
		}
	case AggMin, AggMax:
		if len(elems) == 0 {
			return false, &EvalError{Msg: fmt.Sprintf("aggregate %s over empty path %q is undefined", node.Agg, node.Path)}
		}
		nums := make([]float64, 0, len(elems))
		for _, e := range elems {
			n, ok := e.(jsonval.Number)
			if !ok {
				return false, &EvalError{Msg: fmt.Sprintf("aggregate %s over non-numeric element at %q", node.Agg, node.Path)}
			}
			nums = append(nums, float64(n))
		}
		result = nums[0]
		for _, n := range nums[1:] {
			if node.Agg == AggMin && n < result {
				result = n
			}
			if node.Agg == AggMax && n > result {
				result = n
			}
		}
	default:
		return false, &EvalError{Msg: fmt.Sprintf("unknown agg %q", node.Agg)}
	}

	return compare(node.Op, jsonval.Number(result), jsonval.Number(node.Value))
}
