package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qualify.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	r, err := s.Lookup(context.Background(), "nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("expected nil result, got %+v", r)
	}
}

func TestRecordThenLookupRoundtrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := Result{
		AdapterManifestHash: "abc123",
		Deterministic:       true,
		Reason:              "",
		QualifiedAtSeq:      7,
	}
	if err := s.Record(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Lookup(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a cached result")
	}
	if got.Deterministic != want.Deterministic || got.QualifiedAtSeq != want.QualifiedAtSeq {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRecordUpsertsOnConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Result{AdapterManifestHash: "h1", Deterministic: true, QualifiedAtSeq: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, Result{AdapterManifestHash: "h1", Deterministic: false, Reason: "non_portable_aggregate", QualifiedAtSeq: 2}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Lookup(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Deterministic {
		t.Fatal("expected latest record (deterministic=false) to win")
	}
	if got.QualifiedAtSeq != 2 {
		t.Fatalf("expected seq 2, got %d", got.QualifiedAtSeq)
	}
	if got.Reason != "non_portable_aggregate" {
		t.Fatalf("expected updated reason, got %q", got.Reason)
	}
}
