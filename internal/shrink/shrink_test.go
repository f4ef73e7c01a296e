package shrink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// TestMinimizeDropsIrrelevantOpsAndFaults exercises the greedy fixed point
// against a synthetic predicate: the run fails iff a crash fault (at any
// step) is present among the retained faults, regardless of any ops.
func TestMinimizeDropsIrrelevantOpsAndFaults(t *testing.T) {
	start := Candidate{
		Ops: []engine.PlannedOp{
			{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("noop1")}},
			{Kind: protocol.CmdApply, Op: jsonval.Object{"op": jsonval.String("noop2")}},
			{Kind: protocol.CmdObserve},
		},
		Faults: []fault.Fault{
			{Kind: fault.KindCrash, Step: 5},
			{Kind: fault.KindDelay, Resource: "net", Step: 3, Duration: 2},
		},
	}

	replay := func(ctx context.Context, c Candidate) (string, bool, error) {
		for _, f := range c.Faults {
			if f.Kind == fault.KindCrash {
				return "always_crashes", true, nil
			}
		}
		return "", false, nil
	}

	result, err := Minimize(context.Background(), start, "always_crashes", replay)
	require.NoError(t, err)
	require.Len(t, result.Ops, 0)
	require.Len(t, result.Faults, 1)
	require.Equal(t, fault.KindCrash, result.Faults[0].Kind)
	require.Equal(t, int64(1), result.Faults[0].Step)
}

func TestMinimizeNoOpWhenAlreadyMinimal(t *testing.T) {
	start := Candidate{
		Faults: []fault.Fault{{Kind: fault.KindCrash, Step: 1}},
	}
	replay := func(ctx context.Context, c Candidate) (string, bool, error) {
		if len(c.Faults) == 1 {
			return "target", true, nil
		}
		return "", false, nil
	}
	result, err := Minimize(context.Background(), start, "target", replay)
	require.NoError(t, err)
	require.Len(t, result.Faults, 1)
	require.Equal(t, int64(1), result.Faults[0].Step)
}
