// Package flakysessions is a reference system exercising nomercy's
// crash/restore cycle against a deliberately buggy persistence layer,
// translated from the flaky_sessions Rust reference implementation's
// create/revoke/validate session model into the nomercy wire-protocol
// lifecycle. The bug: revoke mutates the live session table but never
// writes through to the snapshot Crash serializes, so a crash
// immediately after a revoke loses it on restore.
package flakysessions

import (
	"fmt"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

type sessionRecord struct {
	user   string
	active bool
}

// System is the FlakySessions reference adapter.
type System struct {
	live      map[string]*sessionRecord
	persisted map[string]*sessionRecord
	revoked   map[string]bool
	nextID    uint64
}

// New returns a FlakySessions system with no sessions.
func New() *System {
	return &System{
		live:      map[string]*sessionRecord{},
		persisted: map[string]*sessionRecord{},
		revoked:   map[string]bool{},
	}
}

func (s *System) Init(cmd protocol.Command) protocol.Response {
	s.live = map[string]*sessionRecord{}
	s.persisted = map[string]*sessionRecord{}
	s.revoked = map[string]bool{}
	s.nextID = 0
	return ok()
}

func (s *System) Apply(cmd protocol.Command) protocol.Response {
	op, isObj := cmd.Op.(jsonval.Object)
	if !isObj {
		return errResp("flakysessions: op must be an object", false, true)
	}
	kind, _ := op["kind"].(jsonval.String)

	switch string(kind) {
	case "create":
		user, _ := op["user"].(jsonval.String)
		id := fmt.Sprintf("s%d", s.nextID)
		s.nextID++
		rec := &sessionRecord{user: string(user), active: true}
		s.live[id] = rec
		s.persisted[id] = &sessionRecord{user: rec.user, active: rec.active}
		resp := ok()
		resp.Extra = jsonval.Object{"session_id": jsonval.String(id)}
		return resp

	case "revoke":
		id, _ := op["session_id"].(jsonval.String)
		rec, exists := s.live[string(id)]
		if !exists {
			return errResp("flakysessions: unknown session_id", false, true)
		}
		rec.active = false
		s.revoked[string(id)] = true
		return ok()

	case "validate":
		id, _ := op["session_id"].(jsonval.String)
		resp := ok()
		resp.Extra = jsonval.Object{"valid": jsonval.Bool(s.validate(string(id)))}
		return resp

	default:
		return errResp("flakysessions: unknown op kind", false, true)
	}
}

func (s *System) validate(id string) bool {
	rec, exists := s.live[id]
	if !exists {
		return false
	}
	return rec.active
}

func (s *System) Crash() protocol.Response {
	sessions := jsonval.Object{}
	for id, rec := range s.persisted {
		sessions[id] = jsonval.Object{
			"user":   jsonval.String(rec.user),
			"active": jsonval.Bool(rec.active),
		}
	}
	revokedArr := jsonval.Object{}
	for id, v := range s.revoked {
		revokedArr[id] = jsonval.Bool(v)
	}
	state := jsonval.Object{
		"sessions": sessions,
		"revoked":  revokedArr,
		"next_id":  jsonval.Number(s.nextID),
	}
	resp := ok()
	resp.State = state
	return resp
}

func (s *System) Restore(cmd protocol.Command) protocol.Response {
	state, isObj := cmd.State.(jsonval.Object)
	if !isObj {
		return errResp("flakysessions: restore state must be an object", false, true)
	}

	live := map[string]*sessionRecord{}
	persisted := map[string]*sessionRecord{}
	if sessions, ok := state["sessions"].(jsonval.Object); ok {
		for id, v := range sessions {
			obj, ok := v.(jsonval.Object)
			if !ok {
				continue
			}
			user, _ := obj["user"].(jsonval.String)
			active, _ := obj["active"].(jsonval.Bool)
			live[id] = &sessionRecord{user: string(user), active: bool(active)}
			persisted[id] = &sessionRecord{user: string(user), active: bool(active)}
		}
	}
	revoked := map[string]bool{}
	if r, ok := state["revoked"].(jsonval.Object); ok {
		for id, v := range r {
			if b, ok := v.(jsonval.Bool); ok {
				revoked[id] = bool(b)
			}
		}
	}
	nextID := uint64(0)
	if n, ok := state["next_id"].(jsonval.Number); ok {
		nextID = uint64(n)
	}

	s.live = live
	s.persisted = persisted
	s.revoked = revoked
	s.nextID = nextID
	return ok()
}

func (s *System) Observe() protocol.Response {
	sessions := jsonval.Object{}
	for id, rec := range s.live {
		sessions[id] = jsonval.Object{
			"user":    jsonval.String(rec.user),
			"active":  jsonval.Bool(rec.active),
			"revoked": jsonval.Bool(s.revoked[id]),
		}
	}
	resp := protocol.Response{}
	resp.Observation = jsonval.Object{"sessions": sessions}
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
