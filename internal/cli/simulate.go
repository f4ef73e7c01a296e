package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/manifest"
	"github.com/nomercy-sim/nomercy/internal/predicate"
	"github.com/nomercy-sim/nomercy/internal/trace"
)

// recordingPlan wraps a Planner, recording every PlannedOp actually
// consumed in issuance order. pray/explore drive a RandomPlan, whose
// generated sequence only becomes known as the run unfolds; wrapping it
// lets a failing run's repro.json carry the exact ops issued, without the
// planner itself needing to know anything about persistence.
type recordingPlan struct {
	inner engine.Planner
	ops   []engine.PlannedOp
}

func newRecordingPlan(inner engine.Planner) *recordingPlan {
	return &recordingPlan{inner: inner}
}

func (p *recordingPlan) Peek() (engine.PlannedOp, bool) { return p.inner.Peek() }

func (p *recordingPlan) Consume() {
	if op, ok := p.inner.Peek(); ok {
		p.ops = append(p.ops, op)
	}
	p.inner.Consume()
}

// Ops returns the operations consumed so far, in issuance order.
func (p *recordingPlan) Ops() []engine.PlannedOp {
	out := make([]engine.PlannedOp, len(p.ops))
	copy(out, p.ops)
	return out
}

// simOutcome is the full result of one engine run, carrying everything a
// caller needs to report, persist, or feed to the shrinker.
type simOutcome struct {
	Result     *engine.RunResult
	RunErr     *engine.RunError
	Trace      *trace.Recorder
	Ops        []engine.PlannedOp
	AdapterErr string
}

// faultScheduleHash renders the domain-separated hash embedded in
// invariant failure records and repro documents.
func faultScheduleHash(faults []jsonval.Value) string {
	h, err := manifest.HashValue(manifest.DomainFaultSchedule, jsonval.Array(faults))
	if err != nil {
		return ""
	}
	return h
}

// invariantFileHash renders the domain-separated hash of the resolved
// invariant file, embedded verbatim in repro.json.
func invariantFileHash(r *resolvedRun) string {
	h, err := manifest.HashValue(manifest.DomainInvariantFile, r.InvariantsRaw)
	if err != nil {
		return ""
	}
	return h
}

// runSimulation spawns a fresh adapter session, drives plan through a
// fresh Engine under the run's resolved fault schedule and invariants, and
// returns the terminal outcome. The session is always terminated before
// returning, regardless of how the run ends.
func (r *resolvedRun) runSimulation(ctx context.Context, plan engine.Planner, b budget) (*simOutcome, error) {
	return r.simulateWith(ctx, r.Faults, resourceMap(r.Sys.Manifest), r.Invariants, plan, b)
}

// simulateWith is runSimulation generalized over an explicit fault
// schedule, resource map, and invariant set, so the shrinker can replay
// candidates whose fault schedules differ from the run's own resolved one
//, and so `replay`/`shrink` (which never resolve a
// manifest-backed system) can supply a resource map derived straight from
// the fault schedule itself, without duplicating session/engine wiring.
func (r *resolvedRun) simulateWith(ctx context.Context, faults *fault.Schedule, resources fault.ResourceMap, invariants []*predicate.Invariant, plan engine.Planner, b budget) (*simOutcome, error) {
	var stderr bytes.Buffer
	sess, err := r.startSession(ctx, &stderr)
	if err != nil {
		return nil, WrapExitError(ExitAdapterBuildError, "start adapter", lookPathHint(r.Sys.Argv, err))
	}
	defer sess.Terminate()

	rec := newRecordingPlan(plan)
	faultsVal := faultsToValue(faults.Faults())

	opts := []engine.Option{
		engine.WithLogger(r.Log),
		engine.WithFaultScheduleHash(faultScheduleHash(faultsVal)),
	}
	if b.Steps > 0 {
		opts = append(opts, engine.WithMaxSteps(b.Steps))
	}
	if b.Deadline > 0 {
		opts = append(opts, engine.WithDeadline(time.Now().Add(b.Deadline)))
	}

	eng := engine.New(sess, engine.ProtocolVersion, faults, resources, invariants, rec, opts...)

	result, runErr := eng.Run(ctx)

	out := &simOutcome{
		Trace:      eng.Trace(),
		Ops:        rec.Ops(),
		AdapterErr: stderr.String(),
	}
	if runErr != nil {
		re, ok := runErr.(*engine.RunError)
		if !ok {
			return nil, WrapExitError(ExitInternalBug, "engine run", runErr)
		}
		out.RunErr = re
		return out, nil
	}
	out.Result = result
	if result.RunErr != nil {
		out.RunErr = result.RunErr
	}
	return out, nil
}

// buildRepro assembles the canonical repro.json document for a failed
// run, using the run's own resolved fault schedule and the ops the run
// actually consumed.
func buildRepro(r *resolvedRun, out *simOutcome) jsonval.Value {
	return buildReproWithSchedule(r, r.Faults.Faults(), out.Ops, out)
}

// buildReproWithSchedule is buildRepro generalized over an explicit fault
// list and op sequence, used to persist a shrunk candidate's repro.json
// under its own minimized schedule rather than the original run's.
func buildReproWithSchedule(r *resolvedRun, faults []fault.Fault, ops []engine.PlannedOp, out *simOutcome) jsonval.Value {
	obj := jsonval.Object{
		"engine_version":        jsonval.String(engine.ProtocolVersion),
		"adapter_manifest_hash": jsonval.String(r.Sys.ManifestHash),
		"invariant_file_hash":   jsonval.String(invariantFileHash(r)),
		"seed":                  jsonval.Number(float64(r.Seed)),
		"fault_schedule":        faultsToValue(faults),
		"ops":                   opsToValue(ops),
		"adapter_argv":          argvToValue(r.Sys.Argv),
		"minimal_trace":         out.Trace.ToValue(),
	}
	if out.Result != nil && out.Result.Failure != nil {
		obj["failing_invariant"] = out.Result.Failure.ToValue()
	}
	if out.Result != nil && out.Result.LastCrashState != nil {
		obj["last_crash_state"] = out.Result.LastCrashState
	}
	if out.RunErr != nil {
		errObj := jsonval.Object{
			"kind":    jsonval.String(string(out.RunErr.Kind)),
			"message": jsonval.String(out.RunErr.Message),
			"step":    jsonval.Number(float64(out.RunErr.Step)),
		}
		if out.RunErr.Cmd != "" {
			errObj["command"] = jsonval.String(out.RunErr.Cmd)
		}
		for k, v := range out.RunErr.Details {
			errObj[k] = jsonval.String(v)
		}
		obj["error"] = errObj
	}
	return obj
}

// statusForOutcome maps a simulation outcome to the status line of
// output format.
func statusForOutcome(out *simOutcome) string {
	if out.RunErr == nil {
		return "ok"
	}
	return string(out.RunErr.Kind)
}

func exitCodeForOutcome(out *simOutcome) int {
	if out.RunErr == nil {
		return ExitSuccess
	}
	return out.RunErr.ExitCode()
}
