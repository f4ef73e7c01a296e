// Package flake is a deterministic reference system used to exercise
// nomercy end-to-end: a signed counter with an append-only operation
// journal, translated from the Rust SimulationSystem reference
// implementation into the nomercy wire-protocol lifecycle (init/apply/
// crash/restore/observe/shutdown).
package flake

import (
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// System is the Flake reference adapter: counter state plus the journal
// of operations applied since the last init (a crash/restore cycle carries
// the journal over).
type System struct {
	counter int64
	journal []jsonval.Value
}

// New returns a Flake system with a zero counter.
func New() *System {
	return &System{}
}

func (s *System) Init(cmd protocol.Command) protocol.Response {
	s.counter = 0
	s.journal = nil
	if cfg, ok := cmd.Config.(jsonval.Object); ok {
		if n, ok := cfg["initial_counter"].(jsonval.Number); ok {
			s.counter = int64(n)
		}
	}
	return ok()
}

func (s *System) Apply(cmd protocol.Command) protocol.Response {
	op, isObj := cmd.Op.(jsonval.Object)
	if !isObj {
		return errResp("flake: op must be an object", false, true)
	}
	kind, _ := op["kind"].(jsonval.String)
	amount, _ := op["amount"].(jsonval.Number)

	switch string(kind) {
	case "increment":
		s.counter += int64(amount)
	case "decrement":
		s.counter -= int64(amount)
	case "reset":
		s.counter = int64(amount)
	default:
		return errResp("flake: unknown op kind", false, true)
	}
	s.journal = append(s.journal, op)
	return ok()
}

func (s *System) Crash() protocol.Response {
	state := jsonval.Object{
		"counter": jsonval.Number(s.counter),
		"journal": jsonval.Array(append([]jsonval.Value{}, s.journal...)),
	}
	resp := ok()
	resp.State = state
	return resp
}

func (s *System) Restore(cmd protocol.Command) protocol.Response {
	state, isObj := cmd.State.(jsonval.Object)
	if !isObj {
		return errResp("flake: restore state must be an object", false, true)
	}
	if n, ok := state["counter"].(jsonval.Number); ok {
		s.counter = int64(n)
	}
	if j, ok := state["journal"].(jsonval.Array); ok {
		s.journal = append([]jsonval.Value{}, j...)
	} else {
		s.journal = nil
	}
	return ok()
}

func (s *System) Observe() protocol.Response {
	applied := make(jsonval.Array, len(s.journal))
	copy(applied, s.journal)
	resp := protocol.Response{}
	resp.Observation = jsonval.Object{
		"counter": jsonval.Number(s.counter),
		"applied": applied,
	}
	return resp
}

func (s *System) Shutdown() protocol.Response {
	return ok()
}

func ok() protocol.Response {
	t := true
	return protocol.Response{Ok: &t}
}

func errResp(msg string, retryable, fatal bool) protocol.Response {
	return protocol.Response{Error: &msg, Retryable: retryable, Fatal: fatal}
}
