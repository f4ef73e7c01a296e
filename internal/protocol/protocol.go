// Package protocol implements the wire codec for the nomercy adapter
// protocol: line-delimited JSON commands and responses, canonical field
// ordering on encode, strict validation on decode.
package protocol

import (
	"github.com/nomercy-sim/nomercy/internal/jsonval"
)

// MaxLineBytes is the hard cap on a single protocol line, in either
// direction. A line longer than this is treated as protocol_invalid; its
// content is not logged.
const MaxLineBytes = 64 * 1024

// CmdKind is the closed set of command verbs the engine may issue.
type CmdKind string

const (
	CmdInit     CmdKind = "init"
	CmdApply    CmdKind = "apply"
	CmdCrash    CmdKind = "crash"
	CmdRestore  CmdKind = "restore"
	CmdObserve  CmdKind = "observe"
	CmdShutdown CmdKind = "shutdown"
)

// Replayable reports whether a command of this kind may be retransmitted
// identically after a replayable error or a single protocol timeout.
func (k CmdKind) Replayable() bool { return k != CmdShutdown }

// MaxAttempts is the replay quota for a command of this kind, including
// the initial attempt.
func (k CmdKind) MaxAttempts() int {
	switch k {
	case CmdInit, CmdCrash, CmdRestore, CmdObserve:
		return 2
	case CmdApply:
		return 3
	default:
		return 1
	}
}

// Command is the tagged record the engine sends to the adapter.
type Command struct {
	Version string         `json:"version"`
	Cmd     CmdKind         `json:"cmd"`
	Config  jsonval.Value  `json:"config,omitempty"`
	Op      jsonval.Value  `json:"op,omitempty"`
	State   jsonval.Value  `json:"state,omitempty"`
}

// Response is the tagged record the adapter sends back. Exactly one of Ok,
// Error, or Observation is populated; unknown extra fields are
// preserved in Extra for trace replay but never inspected by the engine.
type Response struct {
	Version     string
	Ok          *bool
	State       jsonval.Value
	Observation jsonval.Value
	Error       *string
	Retryable   bool
	Fatal       bool
	Extra       jsonval.Object
}

// Outcome classifies a Response (or its absence) for the scheduler.
type OutcomeKind string

const (
	OutcomeOk               OutcomeKind = "ok"
	OutcomeRetryableError   OutcomeKind = "retryable_error"
	OutcomeFatalError       OutcomeKind = "fatal_error"
	OutcomeTimeout          OutcomeKind = "timeout"
	OutcomeProtocolInvalid  OutcomeKind = "protocol_invalid"
	OutcomeProtocolClosed   OutcomeKind = "protocol_closed"
	OutcomeVersionMismatch  OutcomeKind = "version_mismatch"
)

// Outcome is the pure result of issuing one command: one of
// Ok(response), RetryableError(msg), FatalError(msg), Timeout, or
// ProtocolInvalid, extended with the session-level outcomes
// (protocol_closed, version_mismatch) that also terminate a run.
type Outcome struct {
	Kind     OutcomeKind
	Response *Response
	Message  string
}
