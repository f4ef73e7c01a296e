package flake

import (
	"testing"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

func TestApplyIncrementAndObserve(t *testing.T) {
	s := New()
	s.Init(protocol.Command{})

	resp := s.Apply(protocol.Command{Op: jsonval.Object{"kind": jsonval.String("increment"), "amount": jsonval.Number(5)}})
	if resp.Ok == nil || !*resp.Ok {
		t.Fatalf("expected ok, got %+v", resp)
	}

	obs := s.Observe()
	got := obs.Observation.(jsonval.Object)
	if got["counter"] != jsonval.Number(5) {
		t.Fatalf("expected counter=5, got %+v", got)
	}
}

func TestCrashRestoreRoundtripsState(t *testing.T) {
	s := New()
	s.Init(protocol.Command{})
	s.Apply(protocol.Command{Op: jsonval.Object{"kind": jsonval.String("increment"), "amount": jsonval.Number(3)}})

	crashResp := s.Crash()
	if crashResp.State == nil {
		t.Fatal("expected crash state")
	}

	fresh := New()
	fresh.Init(protocol.Command{})
	restoreResp := fresh.Restore(protocol.Command{State: crashResp.State})
	if restoreResp.Ok == nil || !*restoreResp.Ok {
		t.Fatalf("expected restore ok, got %+v", restoreResp)
	}

	obs := fresh.Observe()
	got := obs.Observation.(jsonval.Object)
	if got["counter"] != jsonval.Number(3) {
		t.Fatalf("expected restored counter=3, got %+v", got)
	}
}

func TestApplyUnknownKindIsFatal(t *testing.T) {
	s := New()
	s.Init(protocol.Command{})
	resp := s.Apply(protocol.Command{Op: jsonval.Object{"kind": jsonval.String("teleport")}})
	if resp.Error == nil || !resp.Fatal {
		t.Fatalf("expected fatal error, got %+v", resp)
	}
}
