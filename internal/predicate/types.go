// Package predicate implements the canonical invariant predicate AST and
// evaluator: a JSON-encoded tagged-variant language
// (cmp/and/or/not/forall/aggregate) evaluated against an observation.
package predicate

import "github.com/nomercy-sim/nomercy/internal/jsonval"

// Node is a sealed interface over predicate AST nodes. Only the types in
// this file implement it; the marker method prevents construction of
// predicate trees outside the exhaustive type switches in eval.go and
// parse.go.
type Node interface {
	predicateNode()
}

// Expr is a sealed interface over the expression language used as cmp's
// operands: a JSON literal or a field reference into the observation.
// (aggregate's right-hand value is a plain number, not an Expr.)
type Expr interface {
	exprNode()
}

// CmpOp is the closed set of scalar comparison operators.
type CmpOp string

const (
	OpEq  CmpOp = "eq"
	OpNe  CmpOp = "ne"
	OpLt  CmpOp = "lt"
	OpLte CmpOp = "lte"
	OpGt  CmpOp = "gt"
	OpGte CmpOp = "gte"
)

// AggKind is the closed set of aggregate functions.
type AggKind string

const (
	AggSum   AggKind = "sum"
	AggMin   AggKind = "min"
	AggMax   AggKind = "max"
	AggCount AggKind = "count"
)

// Cmp compares two expressions with op.
type Cmp struct {
	Op    CmpOp
	Left  Expr
	Right Expr
}

func (Cmp) predicateNode() {}

// And is a conjunction; empty Predicates is vacuously true.
type And struct{ Predicates []Node }

func (And) predicateNode() {}

// Or is a disjunction; empty Predicates is vacuously false.
type Or struct{ Predicates []Node }

func (Or) predicateNode() {}

// Not negates its operand.
type Not struct{ Predicate Node }

func (Not) predicateNode() {}

// Forall evaluates Predicate against every element resolved by Path,
// binding field references that target Path itself to the current
// element. Empty resolution sets are true.
type Forall struct {
	Path      string
	Predicate Node
}

func (Forall) predicateNode() {}

// Aggregate reduces the elements resolved by Path with Agg and compares
// the result to Value with Op.
type Aggregate struct {
	Agg   AggKind
	Path  string
	Op    CmpOp
	Value float64
}

func (Aggregate) predicateNode() {}

// Literal is a JSON literal operand.
type Literal struct{ Value jsonval.Value }

func (Literal) exprNode() {}

// Field is a field-reference operand: resolves Path against the current
// evaluation context (the observation root, or the bound element inside
// a Forall whose Path matches).
type Field struct{ Path string }

func (Field) exprNode() {}
