// Package shrink implements the deterministic greedy multi-axis minimizer:
// given a failing run, produce the smallest run under the preference
// order (steps, operations, faults, timing) that still
// reproduces the same invariant failure, replaying from scratch against a
// fresh engine + adapter for every candidate.
package shrink

import (
	"context"
	"sort"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/predicate"
)

// Candidate is one (operations, faults) pair under minimization. Steps are
// derived, not stored directly: they are simply the issuance count implied
// by Ops plus whatever crash/restore/shutdown steps the faults and engine
// lifecycle add, so "fewer steps" falls out of "fewer ops" and "fewer
// faults" together — the first two preference axes are jointly minimized
// by the same two passes below, and "timing" (the fourth axis) is handled
// separately by tightening retained fault step/duration values.
type Candidate struct {
	Ops    []engine.PlannedOp
	Faults []fault.Fault
}

// AdapterFactory constructs a fresh Adapter for one replay attempt. The
// shrinker never reuses an adapter instance across candidates: each
// candidate gets a fresh engine instance owning its own scheduler.
type AdapterFactory func() engine.Adapter

// ReplayFunc reports whether replaying a candidate reproduces the originally
// observed invariant failure (by name) — the predicate the minimizer must
// preserve at every step.
type ReplayFunc func(ctx context.Context, c Candidate) (failingInvariant string, failed bool, err error)

// Minimize runs the greedy fixed-point reduction: operations first, then
// faults, then fault timing, re-normalizing and replaying from scratch
// after every accepted move, until no further reduction preserves the
// target invariant failure.
func Minimize(ctx context.Context, start Candidate, targetInvariant string, replay ReplayFunc) (Candidate, error) {
	cur := cloneCandidate(start)

	reduceOps := func() error {
		for {
			reduced := false
			for i := len(cur.Ops) - 1; i >= 0; i-- {
				trial := withoutOp(cur, i)
				ok, failed, err := replayPreserves(ctx, trial, targetInvariant, replay)
				if err != nil {
					return err
				}
				if ok && failed {
					cur = trial
					reduced = true
				}
			}
			if !reduced {
				return nil
			}
		}
	}

	reduceFaults := func() error {
		for {
			reduced := false
			for i := len(cur.Faults) - 1; i >= 0; i-- {
				trial := withoutFault(cur, i)
				ok, failed, err := replayPreserves(ctx, trial, targetInvariant, replay)
				if err != nil {
					return err
				}
				if ok && failed {
					cur = trial
					reduced = true
				}
			}
			if !reduced {
				return nil
			}
		}
	}

	tightenTiming := func() error {
		for {
			tightened := false
			for i := range cur.Faults {
				trial, changed := withTightenedTiming(cur, i)
				if !changed {
					continue
				}
				ok, failed, err := replayPreserves(ctx, trial, targetInvariant, replay)
				if err != nil {
					return err
				}
				if ok && failed {
					cur = trial
					tightened = true
				}
			}
			if !tightened {
				return nil
			}
		}
	}

	for {
		beforeOps, beforeFaults := candidateSize(cur)
		if err := reduceOps(); err != nil {
			return Candidate{}, err
		}
		if err := reduceFaults(); err != nil {
			return Candidate{}, err
		}
		if err := tightenTiming(); err != nil {
			return Candidate{}, err
		}
		afterOps, afterFaults := candidateSize(cur)
		if afterOps == beforeOps && afterFaults == beforeFaults {
			break
		}
	}

	sortCanonical(&cur)
	return cur, nil
}

func replayPreserves(ctx context.Context, c Candidate, target string, replay ReplayFunc) (normalizedOK bool, failed bool, err error) {
	name, failedRun, err := replay(ctx, c)
	if err != nil {
		return false, false, err
	}
	return true, failedRun && name == target, nil
}

func withoutOp(c Candidate, i int) Candidate {
	out := cloneCandidate(c)
	out.Ops = append(append([]engine.PlannedOp{}, c.Ops[:i]...), c.Ops[i+1:]...)
	return out
}

func withoutFault(c Candidate, i int) Candidate {
	out := cloneCandidate(c)
	out.Faults = append(append([]fault.Fault{}, c.Faults[:i]...), c.Faults[i+1:]...)
	return out
}

// withTightenedTiming attempts to shift fault i one step earlier (for
// crash/io_error) or shrink its duration by one (for delay), the "timing"
// axis of the preference tuple.
func withTightenedTiming(c Candidate, i int) (Candidate, bool) {
	f := c.Faults[i]
	if f.Step <= 1 {
		if f.Kind != fault.KindDelay || f.Duration <= 1 {
			return c, false
		}
	}
	out := cloneCandidate(c)
	nf := f
	switch f.Kind {
	case fault.KindDelay:
		if f.Duration > 1 {
			nf.Duration = f.Duration - 1
		} else if f.Step > 1 {
			nf.Step = f.Step - 1
		} else {
			return c, false
		}
	default:
		if f.Step > 1 {
			nf.Step = f.Step - 1
		} else {
			return c, false
		}
	}
	out.Faults[i] = nf
	return out, true
}

func cloneCandidate(c Candidate) Candidate {
	ops := make([]engine.PlannedOp, len(c.Ops))
	copy(ops, c.Ops)
	faults := make([]fault.Fault, len(c.Faults))
	copy(faults, c.Faults)
	return Candidate{Ops: ops, Faults: faults}
}

func candidateSize(c Candidate) (int, int) {
	return len(c.Ops), len(c.Faults)
}

// sortCanonical re-orders the retained faults into canonical order, so the
// minimized candidate's serialized fault schedule ties are broken by
// lexicographic order over the canonical schedule.
func sortCanonical(c *Candidate) {
	sort.SliceStable(c.Faults, func(i, j int) bool { return fault.Less(c.Faults[i], c.Faults[j]) })
}

// BuildInvariantsView is a convenience for callers constructing a
// ReplayFunc: it indexes invariants by name, so a replay's failure can be
// looked up by the name it reports. It runs nothing itself.
func BuildInvariantsView(invariants []*predicate.Invariant) map[string]*predicate.Invariant {
	m := make(map[string]*predicate.Invariant, len(invariants))
	for _, inv := range invariants {
		m[inv.Name] = inv
	}
	return m
}
