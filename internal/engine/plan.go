package engine

import (
	"math/rand"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// PlannedOp is one engine-issued apply or observe request, independent of
// any fault-driven crash/restore/shutdown the scheduler injects around it.
type PlannedOp struct {
	Kind protocol.CmdKind // CmdApply or CmdObserve
	Op   jsonval.Value    // apply payload; nil for observe
}

// Planner yields the deterministic sequence of apply/observe commands a
// run issues, independent of fault injection. The scheduler consults the
// fault schedule separately to decide whether a given step becomes a
// crash instead. Peek/Consume (rather than a single Next) let the
// scheduler re-examine the same pending operation across a resource-block
// pause (step 2) without losing its place in the plan.
type Planner interface {
	// Peek returns the next planned operation without consuming it, or
	// ok=false when the plan is exhausted.
	Peek() (PlannedOp, bool)
	// Consume advances past the operation last returned by Peek.
	Consume()
}

// ExplicitPlan replays a fixed, caller-supplied operation sequence —
// used for repro replay, shrinker candidates, and scripted end-to-end
// scenarios (FlakySessions walkthrough).
type ExplicitPlan struct {
	ops []PlannedOp
	i   int
}

// NewExplicitPlan returns a Planner over ops, issued in order.
func NewExplicitPlan(ops []PlannedOp) *ExplicitPlan {
	return &ExplicitPlan{ops: ops}
}

func (p *ExplicitPlan) Peek() (PlannedOp, bool) {
	if p.i >= len(p.ops) {
		return PlannedOp{}, false
	}
	return p.ops[p.i], true
}

func (p *ExplicitPlan) Consume() {
	if p.i < len(p.ops) {
		p.i++
	}
}

// RandomPlan generates an unbounded, seed-deterministic sequence of apply
// operations drawn from a fixed catalog, used by `pray`/`explore` when no
// explicit operation list is given. Budget enforcement (step/time/op
// count) is the caller's responsibility, not the planner's — the planner
// itself never terminates.
type RandomPlan struct {
	rng     *rand.Rand
	catalog []func(r *rand.Rand) jsonval.Value
	pending *PlannedOp
}

// NewRandomPlan returns a RandomPlan seeded deterministically from seed,
// drawing apply payloads from catalog.
func NewRandomPlan(seed int64, catalog []func(r *rand.Rand) jsonval.Value) *RandomPlan {
	return &RandomPlan{rng: rand.New(rand.NewSource(seed)), catalog: catalog}
}

func (p *RandomPlan) Peek() (PlannedOp, bool) {
	if p.pending == nil {
		if len(p.catalog) == 0 {
			return PlannedOp{}, false
		}
		idx := p.rng.Intn(len(p.catalog))
		op := PlannedOp{Kind: protocol.CmdApply, Op: p.catalog[idx](p.rng)}
		p.pending = &op
	}
	return *p.pending, true
}

func (p *RandomPlan) Consume() {
	p.pending = nil
}
