package cli

import (
	"context"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/shrink"
)

// minimizeFailure drives the shrinker against a freshly-failing run,
// replaying each candidate from scratch through its own adapter session
// and engine instance, so no candidate's replay can leak state into
// another's. It returns
// the minimized candidate and the simOutcome from its final, minimal
// replay, so the caller can persist trace.shrunk.json/repro.shrunk.json
// from the same replay rather than re-running once more. resourcesFor
// derives the resource map for a candidate's (possibly already-reduced)
// fault schedule — pray/explore pass the manifest-backed map (constant
// across candidates), while the standalone `shrink` command derives one
// straight from each candidate's own schedule.
func (r *resolvedRun) minimizeFailure(ctx context.Context, targetInvariant string, start shrink.Candidate, resourcesFor func(*fault.Schedule) fault.ResourceMap) (shrink.Candidate, *simOutcome, error) {
	var last *simOutcome

	replay := func(ctx context.Context, c shrink.Candidate) (string, bool, error) {
		faults, err := fault.Normalize(c.Faults)
		if err != nil {
			return "", false, err
		}
		plan := engine.NewExplicitPlan(c.Ops)
		out, err := r.simulateWith(ctx, faults, resourcesFor(faults), r.Invariants, plan, budget{})
		if err != nil {
			return "", false, err
		}
		last = out
		if out.Result != nil && out.Result.Failure != nil {
			return out.Result.Failure.Name, true, nil
		}
		return "", false, nil
	}

	minimized, err := shrink.Minimize(ctx, start, targetInvariant, replay)
	if err != nil {
		return shrink.Candidate{}, nil, err
	}
	// Minimize's last replay inside its fixed point may not be the
	// minimized candidate itself if the final round made no change; redo
	// one replay on the accepted candidate so `last` always reflects it.
	if _, _, err := replay(ctx, minimized); err != nil {
		return shrink.Candidate{}, nil, err
	}
	return minimized, last, nil
}
