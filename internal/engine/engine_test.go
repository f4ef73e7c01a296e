package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/predicate"
	"github.com/nomercy-sim/nomercy/internal/protocol"
	"github.com/nomercy-sim/nomercy/internal/trace"
)

// fakeAdapter drives canned Outcomes in issuance order, keyed by command
// kind, so tests can script an adapter's behavior without a subprocess.
type fakeAdapter struct {
	byKind map[protocol.CmdKind][]protocol.Outcome
	calls  []protocol.Command
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{byKind: map[protocol.CmdKind][]protocol.Outcome{}}
}

func (f *fakeAdapter) script(kind protocol.CmdKind, outcomes ...protocol.Outcome) {
	f.byKind[kind] = append(f.byKind[kind], outcomes...)
}

func (f *fakeAdapter) Issue(ctx context.Context, cmd protocol.Command, wantVersion string) protocol.Outcome {
	f.calls = append(f.calls, cmd)
	queue := f.byKind[cmd.Cmd]
	if len(queue) == 0 {
		return protocol.Outcome{Kind: protocol.OutcomeOk, Response: &protocol.Response{Version: wantVersion, Ok: boolPtr(true)}}
	}
	next := queue[0]
	f.byKind[cmd.Cmd] = queue[1:]
	return next
}

func boolPtr(b bool) *bool { return &b }

func okOutcome() protocol.Outcome {
	return protocol.Outcome{Kind: protocol.OutcomeOk, Response: &protocol.Response{Version: "1.0", Ok: boolPtr(true)}}
}

func okObservation(v jsonval.Value) protocol.Outcome {
	return protocol.Outcome{Kind: protocol.OutcomeOk, Response: &protocol.Response{Version: "1.0", Observation: v}}
}

func okCrashState(v jsonval.Value) protocol.Outcome {
	return protocol.Outcome{Kind: protocol.OutcomeOk, Response: &protocol.Response{Version: "1.0", State: v}}
}

func mustSchedule(t *testing.T, raw []fault.Fault) *fault.Schedule {
	sch, err := fault.Normalize(raw)
	require.NoError(t, err)
	return sch
}

func TestEngineHappyPathApplyObserveShutdown(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.script(protocol.CmdInit, okOutcome())
	adapter.script(protocol.CmdApply, okOutcome())
	adapter.script(protocol.CmdObserve,
		okObservation(jsonval.Object{"balance": jsonval.Number(10)}),
		okObservation(jsonval.Object{"balance": jsonval.Number(10)}))
	adapter.script(protocol.CmdShutdown, okOutcome())

	// Invariants are also checked after apply, against the latest
	// observation, so an observe precedes the apply: against the empty
	// pre-observe snapshot, "balance" resolves to no value and cmp errors.
	plan := NewExplicitPlan([]PlannedOp{
		{Kind: protocol.CmdObserve},
		{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("deposit")}},
		{Kind: protocol.CmdObserve},
	})

	inv, err := predicate.LoadSet(jsonval.Array{
		jsonval.Object{
			"name": jsonval.String("balance_non_negative"),
			"predicate": jsonval.Object{
				"kind": jsonval.String("cmp"),
				"op":   jsonval.String("gte"),
				"left": jsonval.Object{"kind": jsonval.String("field"), "path": jsonval.String("balance")},
				"right": jsonval.Number(0),
			},
			"message": jsonval.String("balance went negative"),
		},
	})
	require.NoError(t, err)

	e := New(adapter, "1.0", mustSchedule(t, nil), fault.ResourceMap{}, inv, plan)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Nil(t, res.RunErr)
	require.Nil(t, res.Failure)

	events := e.Trace().Events()
	require.NotEmpty(t, events)
}

func TestEngineInvariantFailureHalts(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.script(protocol.CmdInit, okOutcome())
	adapter.script(protocol.CmdApply, okOutcome())
	adapter.script(protocol.CmdObserve, okObservation(jsonval.Object{"balance": jsonval.Number(-5)}))

	plan := NewExplicitPlan([]PlannedOp{
		{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("withdraw")}},
		{Kind: protocol.CmdObserve},
	})

	inv, err := predicate.LoadSet(jsonval.Array{
		jsonval.Object{
			"name": jsonval.String("balance_non_negative"),
			"predicate": jsonval.Object{
				"kind": jsonval.String("cmp"),
				"op":   jsonval.String("gte"),
				"left": jsonval.Object{"kind": jsonval.String("field"), "path": jsonval.String("balance")},
				"right": jsonval.Number(0),
			},
			"message": jsonval.String("balance went negative"),
		},
	})
	require.NoError(t, err)

	e := New(adapter, "1.0", mustSchedule(t, nil), fault.ResourceMap{}, inv, plan)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.RunErr)
	require.Equal(t, ErrInvariantFailed, res.RunErr.Kind)
	require.NotNil(t, res.Failure)
	require.Equal(t, "balance_non_negative", res.Failure.Name)
}

func TestEngineCrashRestoreCycle(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.script(protocol.CmdInit, okOutcome())
	adapter.script(protocol.CmdCrash, okCrashState(jsonval.Object{"snapshot": jsonval.Number(1)}))
	adapter.script(protocol.CmdRestore, okOutcome())
	adapter.script(protocol.CmdApply, okOutcome())

	plan := NewExplicitPlan([]PlannedOp{
		{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("deposit")}},
	})

	sch := mustSchedule(t, []fault.Fault{{Kind: fault.KindCrash, Step: 2}})
	resources := fault.ResourceMap{protocol.CmdApply: {"storage"}}

	e := New(adapter, "1.0", sch, resources, nil, plan)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Nil(t, res.RunErr)
	require.NotNil(t, res.LastCrashState)

	var sawCrash, sawRestore bool
	for _, cmd := range adapter.calls {
		if cmd.Cmd == protocol.CmdCrash {
			sawCrash = true
		}
		if cmd.Cmd == protocol.CmdRestore {
			sawRestore = true
		}
	}
	require.True(t, sawCrash)
	require.True(t, sawRestore)
}

func TestEngineRetryableErrorConsumesReplayAttempt(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.script(protocol.CmdInit, okOutcome())
	adapter.script(protocol.CmdApply,
		protocol.Outcome{Kind: protocol.OutcomeRetryableError, Message: "transient"},
		okOutcome(),
	)
	adapter.script(protocol.CmdObserve, okObservation(jsonval.Object{}))

	plan := NewExplicitPlan([]PlannedOp{
		{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("noop")}},
		{Kind: protocol.CmdObserve},
	})

	e := New(adapter, "1.0", mustSchedule(t, nil), fault.ResourceMap{}, nil, plan)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Nil(t, res.RunErr)
}

func TestEngineResourceBlockedByDelayPausesThenProceeds(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.script(protocol.CmdInit, okOutcome())
	adapter.script(protocol.CmdApply, okOutcome())

	plan := NewExplicitPlan([]PlannedOp{
		{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("deposit")}},
	})

	sch := mustSchedule(t, []fault.Fault{{Kind: fault.KindDelay, Resource: "storage", Step: 2, Duration: 1}})
	resources := fault.ResourceMap{protocol.CmdApply: {"storage"}}

	e := New(adapter, "1.0", sch, resources, nil, plan)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Nil(t, res.RunErr)

	var pausedSeen bool
	for _, ev := range e.Trace().Events() {
		if ev.Kind == trace.EventPaused {
			pausedSeen = true
		}
	}
	require.True(t, pausedSeen)
}
