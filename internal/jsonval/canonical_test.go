package jsonval

import "testing"

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	v := Object{
		"b": Number(2),
		"a": Number(1),
		"A": Number(0),
	}
	got, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	want := `{"A":0,"a":1,"b":2}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonicalIsDeterministic(t *testing.T) {
	v := Object{"x": Array{Number(1), String("y"), Bool(true), Null{}}}
	a, err := MarshalCanonical(v)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalCanonical(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("non-deterministic encoding: %s vs %s", a, b)
	}
}

func TestMarshalCanonicalIntegerDouble(t *testing.T) {
	got, err := MarshalCanonical(Number(10))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "10" {
		t.Fatalf("got %s, want 10", got)
	}
}

func TestParsePathWildcards(t *testing.T) {
	p := ParsePath("balances.*")
	if len(p.Segments) != 2 || p.Segments[0] != "balances" || p.Segments[1] != "*" {
		t.Fatalf("unexpected segments: %v", p.Segments)
	}
}

func TestResolveWildcardOverObject(t *testing.T) {
	root := Object{
		"balances": Object{
			"alice": Number(10),
			"bob":   Number(-1),
		},
	}
	got, err := Resolve(root, ParsePath("balances.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if got[0] != Number(10) || got[1] != Number(-1) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestResolveMissingPathIsEmpty(t *testing.T) {
	got, err := Resolve(Object{}, ParsePath("sessions.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty, got %v", got)
	}
}

func TestParseEnforcesObservationLimits(t *testing.T) {
	big := make([]byte, ObservationLimits.MaxBytes+1)
	for i := range big {
		big[i] = ' '
	}
	big[0] = '"'
	big[len(big)-1] = '"'
	_, err := Parse(big, ObservationLimits)
	if err == nil {
		t.Fatal("expected limit error")
	}
}
