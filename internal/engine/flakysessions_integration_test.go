package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nomercy-sim/nomercy/internal/adapterref/flakysessions"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/predicate"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// inProcessSystemAdapter drives a flakysessions.System directly, in the
// same goroutine, so the crash/restore cycle exercised here runs against
// the real adapter logic rather than a scripted fake.
type inProcessSystemAdapter struct {
	sys *flakysessions.System
}

func (a *inProcessSystemAdapter) Issue(ctx context.Context, cmd protocol.Command, wantVersion string) protocol.Outcome {
	var resp protocol.Response
	switch cmd.Cmd {
	case protocol.CmdInit:
		resp = a.sys.Init(cmd)
	case protocol.CmdApply:
		resp = a.sys.Apply(cmd)
	case protocol.CmdCrash:
		resp = a.sys.Crash()
	case protocol.CmdRestore:
		resp = a.sys.Restore(cmd)
	case protocol.CmdObserve:
		resp = a.sys.Observe()
	case protocol.CmdShutdown:
		resp = a.sys.Shutdown()
	}
	resp.Version = wantVersion
	if resp.Error != nil {
		kind := protocol.OutcomeFatalError
		if resp.Retryable {
			kind = protocol.OutcomeRetryableError
		}
		return protocol.Outcome{Kind: kind, Response: &resp, Message: *resp.Error}
	}
	return protocol.Outcome{Kind: protocol.OutcomeOk, Response: &resp}
}

func TestFlakySessionsRevokeThenCrashViolatesRevokedImpliesInactive(t *testing.T) {
	sys := flakysessions.New()
	adapter := &inProcessSystemAdapter{sys: sys}

	plan := NewExplicitPlan([]PlannedOp{
		{Kind: protocol.CmdApply, Op: jsonval.Object{"kind": jsonval.String("create"), "user": jsonval.String("alice")}},
		{Kind: protocol.CmdApply, Op: jsonval.Object{"kind": jsonval.String("revoke"), "session_id": jsonval.String("s0")}},
		{Kind: protocol.CmdObserve},
	})

	inv, err := predicate.LoadSet(jsonval.Array{
		jsonval.Object{
			"name": jsonval.String("sessions.revoked_implies_inactive"),
			"predicate": jsonval.Object{
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
			},
			"message": jsonval.String("a revoked session observed active after restore"),
		},
	})
	require.NoError(t, err)

	// Steps: 1=init, 2=create, 3=revoke, 4=observe attempt (intercepted by
	// the crash below, forcing a crash+restore cycle), 5=restore,
	// 6=observe retried after restore. crash@4 lands squarely between the
	// revoke and the observation that would otherwise have caught it.
	sch, err := fault.Normalize([]fault.Fault{{Kind: fault.KindCrash, Step: 4}})
	require.NoError(t, err)

	e := New(adapter, "1.0", sch, fault.ResourceMap{}, inv, plan)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.RunErr)
	require.Equal(t, ErrInvariantFailed, res.RunErr.Kind)
	require.NotNil(t, res.Failure)
	require.Equal(t, "sessions.revoked_implies_inactive", res.Failure.Name)
}
