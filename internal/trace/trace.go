// Package trace implements the append-only trace recorder: an in-memory,
// write-once event log flushed to canonical JSON on run finalization.
package trace

import (
	"sync/atomic"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// EventKind is the closed set of trace event variants.
type EventKind string

const (
	EventCommandIssued      EventKind = "command_issued"
	EventResponseReceived   EventKind = "response_received"
	EventTimeout            EventKind = "timeout"
	EventReplayAttempt      EventKind = "replay_attempt"
	EventFaultApplied       EventKind = "fault_applied"
	EventInvariantChecked   EventKind = "invariant_checked"
	EventInvariantFailed    EventKind = "invariant_failed"
	EventCrashStateCaptured EventKind = "crash_state_captured"
	EventRestoreConsumed    EventKind = "restore_consumed"
	EventShutdown           EventKind = "shutdown"
	EventPaused             EventKind = "paused"
)

// Event is one immutable trace record.
type Event struct {
	Seq     int64
	Step    int64
	Attempt int
	Kind    EventKind
	Cmd     protocol.CmdKind
	Detail  jsonval.Object
}

// ToValue renders e as canonical-JSON-ready jsonval.Object.
func (e Event) ToValue() jsonval.Value {
	obj := jsonval.Object{
		"seq":     jsonval.Number(float64(e.Seq)),
		"step":    jsonval.Number(float64(e.Step)),
		"attempt": jsonval.Number(float64(e.Attempt)),
		"kind":    jsonval.String(string(e.Kind)),
	}
	if e.Cmd != "" {
		obj["cmd"] = jsonval.String(string(e.Cmd))
	}
	if len(e.Detail) > 0 {
		obj["detail"] = e.Detail
	}
	return obj
}

// Recorder accumulates events during a run. Each engine owns its own
// Recorder, and the shrinker builds a fresh engine per replay candidate.
type Recorder struct {
	seq    atomic.Int64
	events []Event
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// Record appends an event, assigning it the next sequence number.
func (r *Recorder) Record(step int64, attempt int, kind EventKind, cmd protocol.CmdKind, detail jsonval.Object) Event {
	e := Event{
		Seq:     r.seq.Add(1),
		Step:    step,
		Attempt: attempt,
		Kind:    kind,
		Cmd:     cmd,
		Detail:  detail,
	}
	r.events = append(r.events, e)
	return e
}

// Events returns the recorded events in issuance order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset clears the recorder for a fresh shrinker replay candidate.
func (r *Recorder) Reset() {
	r.events = nil
	r.seq.Store(0)
}

// ToValue renders the full trace as a canonical JSON array.
func (r *Recorder) ToValue() jsonval.Value {
	arr := make(jsonval.Array, len(r.events))
	for i, e := range r.events {
		arr[i] = e.ToValue()
	}
	return arr
}
