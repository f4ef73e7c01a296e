package predicate

import (
	"testing"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

func mustParse(t *testing.T, v jsonval.Value) Node {
	t.Helper()
	n, err := Parse(v)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return n
}

func TestForallEmptyPathIsTrue(t *testing.T) {
	pred := mustParse(t, jsonval.Object{
		"kind": jsonval.String("forall"),
		"path": jsonval.String("sessions.*"),
		"predicate": jsonval.Object{
			"kind": jsonval.String("cmp"),
			"op":   jsonval.String("eq"),
			"left": jsonval.Object{"kind": jsonval.String("field"), "path": jsonval.String("sessions.*")},
			"right": jsonval.Bool(true),
		},
	})
	ok, err := Eval(pred, jsonval.Object{})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("forall over empty path must be true")
	}
}

func TestAggregateSumEmptyIsZero(t *testing.T) {
	pred := mustParse(t, jsonval.Object{
		"kind":  jsonval.String("aggregate"),
		"agg":   jsonval.String("sum"),
		"path":  jsonval.String("missing.*"),
		"op":    jsonval.String("eq"),
		"value": jsonval.Number(0),
	})
	ok, err := Eval(pred, jsonval.Object{})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("sum over empty path must equal 0")
	}
}

func TestAggregateMinOverEmptyIsFatal(t *testing.T) {
	pred := mustParse(t, jsonval.Object{
		"kind":  jsonval.String("aggregate"),
		"agg":   jsonval.String("min"),
		"path":  jsonval.String("missing.*"),
		"op":    jsonval.String("eq"),
		"value": jsonval.Number(0),
	})
	_, err := Eval(pred, jsonval.Object{})
	if err == nil {
		t.Fatal("expected evaluation error for min over empty set")
	}
}

func TestNonNegativeBalancesScenario(t *testing.T) {
	pred := mustParse(t, jsonval.Object{
		"kind": jsonval.String("forall"),
		"path": jsonval.String("balances.*"),
		"predicate": jsonval.Object{
			"kind": jsonval.String("cmp"),
			"op":   jsonval.String("gte"),
			"left": jsonval.Object{"kind": jsonval.String("field"), "path": jsonval.String("balances.*")},
			"right": jsonval.Number(0),
		},
	})
	obs := jsonval.Object{
		"balances": jsonval.Object{
			"alice": jsonval.Number(10),
			"bob":   jsonval.Number(-1),
		},
	}
	ok, detail, err := EvalDetail(pred, obs)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected invariant to fail")
	}
	if detail == nil || detail.Path != "balances.bob" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestForallSubFieldRevokedImpliesInactive(t *testing.T) {
	// A forall over sessions.* whose body compares two sibling fields of
	// the bound session (active, revoked), not the bound element itself.
	pred := mustParse(t, jsonval.Object{
		"kind": jsonval.String("forall"),
		"path": jsonval.String("sessions.*"),
		"predicate": jsonval.Object{
			"kind": jsonval.String("or"),
			"predicates": jsonval.Array{
				jsonval.Object{
					"kind": jsonval.String("cmp"),
					"op":   jsonval.String("eq"),
					"left": jsonval.Object{"kind": jsonval.String("field"), "path": jsonval.String("sessions.*.active")},
					"right": jsonval.Bool(false),
				},
				jsonval.Object{
					"kind": jsonval.String("cmp"),
					"op":   jsonval.String("eq"),
					"left": jsonval.Object{"kind": jsonval.String("field"), "path": jsonval.String("sessions.*.revoked")},
					"right": jsonval.Bool(false),
				},
			},
		},
	})

	healthy := jsonval.Object{
		"sessions": jsonval.Object{
			"s0": jsonval.Object{"active": jsonval.Bool(false), "revoked": jsonval.Bool(true)},
		},
	}
	ok, _, err := EvalDetail(pred, healthy)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("revoked+inactive session must satisfy the invariant")
	}

	broken := jsonval.Object{
		"sessions": jsonval.Object{
			"s0": jsonval.Object{"active": jsonval.Bool(true), "revoked": jsonval.Bool(true)},
		},
	}
	ok, detail, err := EvalDetail(pred, broken)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("revoked session still active must violate the invariant")
	}
	if detail == nil || detail.Path != "sessions.s0.active" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse(jsonval.Object{"kind": jsonval.String("bogus")})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseRejectsStaticMixedType(t *testing.T) {
	_, err := Parse(jsonval.Object{
		"kind":  jsonval.String("cmp"),
		"op":    jsonval.String("eq"),
		"left":  jsonval.String("x"),
		"right": jsonval.Number(1),
	})
	if err == nil {
		t.Fatal("expected static mixed-type rejection")
	}
}

func TestLoadSetRejectsDuplicateNames(t *testing.T) {
	one := jsonval.Object{
		"name":    jsonval.String("a.b"),
		"message": jsonval.String("m"),
		"predicate": jsonval.Object{
			"kind": jsonval.String("cmp"), "op": jsonval.String("eq"),
			"left": jsonval.Number(1), "right": jsonval.Number(1),
		},
	}
	_, err := LoadSet(jsonval.Array{one, one})
	if err == nil {
		t.Fatal("expected duplicate-name rejection")
	}
}
