package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/nomercy-sim/nomercy/internal/clock"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/observation"
	"github.com/nomercy-sim/nomercy/internal/predicate"
	"github.com/nomercy-sim/nomercy/internal/protocol"
	"github.com/nomercy-sim/nomercy/internal/trace"
)

// Adapter is the narrow interface the scheduler depends on, satisfied by
// *session.Session. Tests substitute a fake to drive the state machine
// without spawning a real process.
type Adapter interface {
	Issue(ctx context.Context, cmd protocol.Command, wantVersion string) protocol.Outcome
}

// Engine drives one run's command lifecycle. It is single-writer: Run
// must not be called concurrently, and owns its scheduler state,
// observation store, and trace buffer exclusively for the run's
// duration.
type Engine struct {
	adapter   Adapter
	clock     *clock.Clock
	faults    *fault.Schedule
	resources fault.ResourceMap
	store     *observation.Store
	trace     *trace.Recorder
	invariants []*predicate.Invariant
	plan      Planner
	version   string
	log       *slog.Logger

	maxApplyAttempts int

	faultScheduleHash string

	initConfig jsonval.Value

	pendingRestore jsonval.Value
	hasPending     bool
	lastCrashState jsonval.Value
	haveCrashState bool

	maxSteps int64     // 0 = unbounded; caps the plan-driven (non-pending) portion of the run
	deadline time.Time // zero = unbounded
}

// Option configures an Engine at construction, using the standard
// functional-options pattern.
type Option func(*Engine)

// WithMaxApplyAttempts overrides the default apply replay quota (3).
func WithMaxApplyAttempts(n int) Option {
	return func(e *Engine) { e.maxApplyAttempts = n }
}

// WithLogger overrides the engine's structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithFaultScheduleHash records the hash used to tag invariant failure
// records (FailureRecord.fault_schedule_hash).
func WithFaultScheduleHash(hash string) Option {
	return func(e *Engine) { e.faultScheduleHash = hash }
}

// WithInitConfig sets the config payload sent with the init command.
func WithInitConfig(cfg jsonval.Value) Option {
	return func(e *Engine) { e.initConfig = cfg }
}

// WithMaxSteps bounds a `pray`/`explore` run's random-plan-driven portion
// to n step indices (the `--budget steps=<n>` flag); explicit plans
// from replay/shrink are unaffected since they exhaust on their own. A
// run already mid crash/restore cycle always finishes the restore before
// the bound is checked, so a budget never abandons pending state.
func WithMaxSteps(n int64) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithDeadline bounds a run by wall-clock time (the `--budget
// time=<dur>` flag). This is an exploratory stopping condition only; it
// plays no part in the determinism guarantees, which are stated over
// (seed, adapter, invariants, fault_schedule, config) alone.
func WithDeadline(t time.Time) Option {
	return func(e *Engine) { e.deadline = t }
}

// New constructs an Engine. version is the protocol semver echoed on
// every command.
func New(adapter Adapter, version string, faults *fault.Schedule, resources fault.ResourceMap, invariants []*predicate.Invariant, plan Planner, opts ...Option) *Engine {
	e := &Engine{
		adapter:          adapter,
		clock:            clock.New(),
		faults:           faults,
		resources:        resources,
		store:            observation.New(),
		trace:            trace.New(),
		invariants:       invariants,
		plan:             plan,
		version:          version,
		log:              slog.Default(),
		maxApplyAttempts: 3,
		initConfig:       jsonval.Object{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trace returns the run's trace recorder.
func (e *Engine) Trace() *trace.Recorder { return e.trace }

// CurrentStep returns the most recently issued step index.
func (e *Engine) CurrentStep() int64 { return e.clock.Current() }

// Store returns the run's observation store.
func (e *Engine) Store() *observation.Store { return e.store }

// RunResult is the terminal outcome of a Run call.
type RunResult struct {
	RunErr         *RunError
	Failure        *predicate.FailureRecord
	LastCrashState jsonval.Value
}

// Run drives the full command lifecycle: init, then an interleaving of
// apply/(crash->restore)/observe, then shutdown.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	e.log.Info("engine starting")

	if crashes := e.faults.FaultsAt(1); hasCrash(crashes) {
		return nil, &RunError{
			Kind:    ErrProtocolInvalid,
			Message: "crash@1 targets init and is rejected at load time",
			Step:    1,
		}
	}

	if res, err := e.runInit(ctx); err != nil || res != nil {
		return res, err
	}

	for {
		done, res, err := e.runStep(ctx)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		if done {
			break
		}
	}

	if res, err := e.runShutdown(ctx); err != nil || res != nil {
		return res, err
	}

	e.log.Info("engine stopping")
	return &RunResult{LastCrashState: e.lastCrashState}, nil
}

// budgetExceeded reports whether a configured step or wall-clock budget
// has been reached. Called only when no crash/restore cycle is pending,
// so a budget never cuts a run off mid-recovery.
func (e *Engine) budgetExceeded() bool {
	if e.maxSteps > 0 && e.clock.Current() >= e.maxSteps {
		return true
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		return true
	}
	return false
}

func hasCrash(fs []fault.Fault) bool {
	for _, f := range fs {
		if f.Kind == fault.KindCrash {
			return true
		}
	}
	return false
}

func (e *Engine) runInit(ctx context.Context) (*RunResult, error) {
	step := e.clock.Next()
	resp, runErr := e.issueWithReplay(ctx, step, protocol.CmdInit, e.initConfig, false)
	if runErr != nil {
		return nil, runErr
	}
	_ = resp
	return nil, nil
}

// runStep executes one pass of the per-step algorithm.
// done=true means the plan is exhausted and no restore is pending, so the
// caller should proceed to shutdown. res!=nil means a terminal invariant
// failure occurred.
func (e *Engine) runStep(ctx context.Context) (done bool, res *RunResult, err error) {
	var kind protocol.CmdKind
	var payload jsonval.Value

	if e.hasPending {
		kind = protocol.CmdRestore
		payload = e.pendingRestore
	} else {
		if e.budgetExceeded() {
			return true, nil, nil
		}
		op, ok := e.plan.Peek()
		if !ok {
			return true, nil, nil
		}
		kind = op.Kind
		payload = op.Op
	}

	step := e.clock.Next()

	for _, resource := range e.resources.ResourcesTouched(kind) {
		if e.faults.ResourceBlocked(resource, step) {
			e.trace.Record(step, 0, trace.EventPaused, kind, jsonval.Object{"resource": jsonval.String(resource)})
			return false, nil, nil
		}
	}

	faultsAtStep := e.faults.FaultsAt(step)
	forceCrash := false
	forceIOErrorFirst := false
	for _, f := range faultsAtStep {
		switch f.Kind {
		case fault.KindCrash:
			forceCrash = true
			e.trace.Record(step, 0, trace.EventFaultApplied, kind, jsonval.Object{"fault": jsonval.String("crash")})
		case fault.KindIOError:
			if kind == protocol.CmdApply && !forceCrash {
				forceIOErrorFirst = true
				e.trace.Record(step, 0, trace.EventFaultApplied, kind, jsonval.Object{"fault": jsonval.String("io_error")})
			} else {
				e.trace.Record(step, 0, trace.EventFaultApplied, kind, jsonval.Object{"fault": jsonval.String("io_error"), "moot": jsonval.Bool(true)})
			}
		case fault.KindDelay:
			e.trace.Record(step, 0, trace.EventFaultApplied, kind, jsonval.Object{"fault": jsonval.String("delay"), "resource": jsonval.String(f.Resource)})
		}
	}

	effective := kind
	if forceCrash {
		effective = protocol.CmdCrash
	}

	resp, runErr := e.issueWithReplay(ctx, step, effective, payload, forceIOErrorFirst)
	if runErr != nil {
		return false, nil, runErr
	}

	switch effective {
	case protocol.CmdApply, protocol.CmdObserve:
		e.plan.Consume()
		if effective == protocol.CmdObserve {
			if err := jsonval.CheckLimits(resp.Observation, jsonval.ObservationLimits); err != nil {
				return false, nil, &RunError{Kind: ErrObservationLimit, Step: step, Cmd: string(effective), Message: err.Error()}
			}
			e.store.Observe(resp.Observation)
		}
	case protocol.CmdCrash:
		e.store.SnapshotBeforeCrash()
		e.store.ResetAfterCrash()
		e.lastCrashState = resp.State
		e.haveCrashState = true
		e.pendingRestore = resp.State
		e.hasPending = true
	case protocol.CmdRestore:
		e.hasPending = false
	}

	if effective == protocol.CmdApply || effective == protocol.CmdCrash || effective == protocol.CmdRestore || effective == protocol.CmdObserve {
		e.trace.Record(step, 0, trace.EventInvariantChecked, effective, nil)
		if failure := e.checkInvariants(step); failure != nil {
			e.trace.Record(step, 0, trace.EventInvariantFailed, effective, jsonval.Object{"name": jsonval.String(failure.Name)})
			return false, &RunResult{
				RunErr:         &RunError{Kind: ErrInvariantFailed, Step: step, Cmd: string(effective), Message: failure.Message},
				Failure:        failure,
				LastCrashState: e.lastCrashState,
			}, nil
		}
	}

	return false, nil, nil
}

func (e *Engine) checkInvariants(step int64) *predicate.FailureRecord {
	obs := e.store.Current()
	for _, inv := range e.invariants {
		ok, detail, err := predicate.EvalDetail(inv.Predicate, obs)
		if err != nil {
			return &predicate.FailureRecord{
				Name:              inv.Name,
				Predicate:         inv.Raw(),
				Message:           err.Error(),
				Observation:       obs,
				Step:              step,
				FaultScheduleHash: e.faultScheduleHash,
			}
		}
		if !ok {
			msg := inv.Message
			if detail != nil {
				msg = formatFailureMessage(inv.Message, detail)
			}
			return &predicate.FailureRecord{
				Name:              inv.Name,
				Predicate:         inv.Raw(),
				Message:           msg,
				Observation:       obs,
				Step:              step,
				FaultScheduleHash: e.faultScheduleHash,
			}
		}
	}
	return nil
}

func formatFailureMessage(template string, detail *predicate.FailureDetail) string {
	b, err := jsonval.MarshalCanonical(detail.Value)
	value := "?"
	if err == nil {
		value = string(b)
	}
	return template + ": " + detail.Path + "=" + value
}

func (e *Engine) runShutdown(ctx context.Context) (*RunResult, error) {
	step := e.clock.Next()
	_, runErr := e.issueWithReplay(ctx, step, protocol.CmdShutdown, nil, false)
	if runErr != nil {
		return nil, runErr
	}
	e.trace.Record(step, 1, trace.EventShutdown, protocol.CmdShutdown, nil)
	return nil, nil
}

// issueWithReplay issues kind at step, applying the command replay matrix
// (a timeout consumes one replay slot; a second timeout is fatal).
// forceIOErrorFirst synthesizes a replayable error on attempt 1 without
// contacting the adapter, as required by the io_error fault semantics.
func (e *Engine) issueWithReplay(ctx context.Context, step int64, kind protocol.CmdKind, payload jsonval.Value, forceIOErrorFirst bool) (*protocol.Response, *RunError) {
	maxAttempts := kind.MaxAttempts()
	if kind == protocol.CmdApply && e.maxApplyAttempts > 0 {
		maxAttempts = e.maxApplyAttempts
	}

	var prevCrashState jsonval.Value
	haveCrash := false
	timeouts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		e.trace.Record(step, attempt, trace.EventCommandIssued, kind, nil)

		var outcome protocol.Outcome
		if forceIOErrorFirst && attempt == 1 {
			outcome = protocol.Outcome{Kind: protocol.OutcomeRetryableError, Message: "synthetic io_error fault"}
		} else {
			outcome = e.adapter.Issue(ctx, buildCommand(e.version, kind, payload), e.version)
		}

		switch outcome.Kind {
		case protocol.OutcomeOk:
			e.trace.Record(step, attempt, trace.EventResponseReceived, kind, nil)
			if kind == protocol.CmdCrash {
				state := outcome.Response.State
				if haveCrash && !jsonval.Equal(prevCrashState, state) {
					return nil, &RunError{Kind: ErrCrashStateMismatch, Step: step, Cmd: string(kind), Message: "crash state differs between replay attempts"}
				}
				prevCrashState = state
				haveCrash = true
				e.trace.Record(step, attempt, trace.EventCrashStateCaptured, kind, nil)
			}
			if kind == protocol.CmdRestore {
				e.trace.Record(step, attempt, trace.EventRestoreConsumed, kind, nil)
			}
			return outcome.Response, nil

		case protocol.OutcomeRetryableError:
			if attempt >= maxAttempts {
				return nil, &RunError{Kind: ErrFatalAdapterError, Step: step, Cmd: string(kind), Message: "replay quota exceeded: " + outcome.Message}
			}
			e.trace.Record(step, attempt+1, trace.EventReplayAttempt, kind, jsonval.Object{"reason": jsonval.String("retryable_error")})

		case protocol.OutcomeTimeout:
			timeouts++
			e.trace.Record(step, attempt, trace.EventTimeout, kind, nil)
			if timeouts >= 2 || attempt >= maxAttempts {
				msg := "second timeout on same command"
				if timeouts < 2 {
					msg = "timeout with no replay attempts remaining"
				}
				return nil, &RunError{
					Kind: ErrProtocolTimeout, Step: step, Cmd: string(kind),
					Message: msg,
					Details: map[string]string{"timeout_count": strconv.Itoa(timeouts)},
				}
			}
			e.trace.Record(step, attempt+1, trace.EventReplayAttempt, kind, jsonval.Object{"reason": jsonval.String("timeout")})

		case protocol.OutcomeFatalError:
			return nil, &RunError{Kind: ErrFatalAdapterError, Step: step, Cmd: string(kind), Message: outcome.Message}

		case protocol.OutcomeProtocolInvalid:
			return nil, &RunError{Kind: ErrProtocolInvalid, Step: step, Cmd: string(kind), Message: outcome.Message}

		case protocol.OutcomeProtocolClosed:
			return nil, &RunError{Kind: ErrFatalAdapterError, Step: step, Cmd: string(kind), Message: "protocol_closed"}

		case protocol.OutcomeVersionMismatch:
			return nil, &RunError{Kind: ErrVersionMismatch, Step: step, Cmd: string(kind), Message: outcome.Message}
		}
	}
	return nil, &RunError{Kind: ErrInternalBug, Step: step, Cmd: string(kind), Message: "replay loop exited without outcome"}
}

func buildCommand(version string, kind protocol.CmdKind, payload jsonval.Value) protocol.Command {
	cmd := protocol.Command{Version: version, Cmd: kind}
	switch kind {
	case protocol.CmdInit:
		cmd.Config = payload
	case protocol.CmdApply:
		cmd.Op = payload
	case protocol.CmdRestore:
		cmd.State = payload
	}
	return cmd
}
