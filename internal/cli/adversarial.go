package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/shrink"
)

// runAdversarial is the shared body of `pray` and `explore`: resolve
// inputs, qualify implicitly, drive a random plan under the resolved
// fault schedule for up to defaultBudget steps when the caller gave none,
// and persist trace/repro artifacts on failure. The two commands differ
// only in their default budget: `pray` is bounded by default, while
// `explore` runs until interrupted or until a given --budget expires.
func runAdversarial(ctx context.Context, opts *RootOptions, flags map[string]bool, systemDir string, f *OutputFormatter, defaultBudget budget) error {
	run, err := resolveRun(opts, flags, systemDir)
	if err != nil {
		return err
	}
	f.Format = run.Cfg.Format
	f.Verbose = run.Cfg.Verbose

	histPath := filepath.Join(run.ArtifactDir.Path, "qualify.db")
	qual, err := run.qualifyCached(ctx, histPath)
	if err != nil {
		return WrapExitError(ExitInternalBug, "qualify", err)
	}
	if !qual.Deterministic {
		report := &Report{Status: "system_not_deterministic"}
		sec := report.AddSection("qualification")
		sec.Add("adapter_manifest_hash", run.Sys.ManifestHash)
		sec.Add("reason", qual.Reason)
		if emitErr := f.Emit(report); emitErr != nil {
			return WrapExitError(ExitInternalBug, "emit output", emitErr)
		}
		return NewExitError(ExitNotDeterministic, "system failed static determinism qualification")
	}

	b, err := parseBudget(opts.Budget)
	if err != nil {
		return NewExitError(ExitAdapterBuildError, err.Error())
	}
	if b.Steps == 0 && b.Deadline == 0 && !b.Infinite {
		b = defaultBudget
	}

	catalog := buildCatalog(run.Sys.Manifest)
	plan := engine.NewRandomPlan(int64(run.Seed), catalog)

	out, err := run.runSimulation(ctx, plan, b)
	if err != nil {
		return err
	}

	if traceErr := run.ArtifactDir.WriteTrace(out.Trace.ToValue()); traceErr != nil {
		return WrapExitError(ExitInternalBug, "write trace", traceErr)
	}

	report := &Report{Status: statusForOutcome(out)}
	if f.Format == "json" {
		seedSec := report.AddSection("seed")
		seedSec.Add("value", fmt.Sprintf("%d", run.Seed))
	} else if _, err := fmt.Fprintf(f.Writer, "seed=%d\n", run.Seed); err != nil {
		return WrapExitError(ExitInternalBug, "emit output", err)
	}
	runSec := report.AddSection("run")
	runSec.Add("steps", fmt.Sprintf("%d", len(out.Ops)))

	if out.RunErr == nil {
		if emitErr := f.Emit(report); emitErr != nil {
			return WrapExitError(ExitInternalBug, "emit output", emitErr)
		}
		return nil
	}

	repro := buildRepro(run, out)
	if err := run.ArtifactDir.WriteRepro(repro); err != nil {
		return WrapExitError(ExitInternalBug, "write repro", err)
	}

	failSec := report.AddSection("failure")
	failSec.Add("kind", string(out.RunErr.Kind))
	failSec.Add("step", fmt.Sprintf("%d", out.RunErr.Step))
	failSec.Add("repro", run.ArtifactDir.ReproPath())
	if out.RunErr.Cmd != "" {
		failSec.Add("command", out.RunErr.Cmd)
	}
	failSec.Add("message", out.RunErr.Message)
	for k, v := range out.RunErr.Details {
		failSec.Add(k, v)
	}

	if out.Result != nil && out.Result.Failure != nil {
		start := shrink.Candidate{Ops: out.Ops, Faults: run.Faults.Faults()}
		manifestResources := resourceMap(run.Sys.Manifest)
		minimized, minOut, shrinkErr := run.minimizeFailure(ctx, out.Result.Failure.Name, start,
			func(*fault.Schedule) fault.ResourceMap { return manifestResources })
		if shrinkErr != nil {
			f.VerboseLog("shrink failed: %v", shrinkErr)
		} else {
			if err := run.ArtifactDir.WriteReproShrunk(buildReproWithSchedule(run, minimized.Faults, minimized.Ops, minOut)); err != nil {
				return WrapExitError(ExitInternalBug, "write shrunk repro", err)
			}
			if err := run.ArtifactDir.WriteTraceShrunk(minOut.Trace.ToValue()); err != nil {
				return WrapExitError(ExitInternalBug, "write shrunk trace", err)
			}
			failSec.Add("shrunk_ops", fmt.Sprintf("%d", len(minimized.Ops)))
			failSec.Add("shrunk_faults", fmt.Sprintf("%d", len(minimized.Faults)))
		}
	}

	if emitErr := f.Emit(report); emitErr != nil {
		return WrapExitError(ExitInternalBug, "emit output", emitErr)
	}
	return NewExitError(exitCodeForOutcome(out), out.RunErr.Message)
}
