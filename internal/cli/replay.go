package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nomercy-sim/nomercy/internal/artifact"
	"github.com/nomercy-sim/nomercy/internal/engine"
	"github.com/nomercy-sim/nomercy/internal/runlog"
)

// NewReplayCommand implements `nomercy replay <repro.json>`: re-issues the
// exact ops recorded in a repro under its exact fault schedule against a
// fresh adapter session, and verifies the replay reproduces the same
// outcome. Does not accept --seed: everything needed to reproduce the
// run travels inside the repro.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "replay <repro.json>",
		Short:        "byte-identically replay a recorded failure",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, flagsSet(cmd), args[0], cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, flags map[string]bool, reproPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	if flags["seed"] {
		return NewExitError(ExitAdapterBuildError, "replay does not accept --seed")
	}

	cfg, invariants, invRaw, _, err := resolveInvariantsOnly(opts, flags)
	if err != nil {
		return err
	}

	doc, err := loadRepro(reproPath)
	if err != nil {
		return WrapExitError(ExitAdapterBuildError, "load repro", err)
	}

	run := &resolvedRun{
		Cfg:           cfg,
		Sys:           &system{Argv: doc.AdapterArgv},
		Invariants:    invariants,
		InvariantsRaw: invRaw,
		Faults:        doc.Faults,
		Seed:          doc.Seed,
		SeedGiven:     true,
		Log:           runlog.New(cfg.Verbose, cfg.Format == "json"),
	}

	f := &OutputFormatter{Format: cfg.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: cfg.Verbose}

	plan := engine.NewExplicitPlan(doc.Ops)
	out, err := run.simulateWith(ctx, doc.Faults, resourceMapFromFaults(doc.Faults.Faults()), invariants, plan, budget{})
	if err != nil {
		return err
	}

	dir := artifact.Dir{Path: filepath.Dir(reproPath)}
	if err := dir.WriteTraceReplayed(out.Trace.ToValue()); err != nil {
		return WrapExitError(ExitInternalBug, "write replayed trace", err)
	}

	report := &Report{}
	seedSec := report.AddSection("seed")
	seedSec.Add("value", fmt.Sprintf("%d", doc.Seed))

	reproducedFailure := out.Result != nil && out.Result.Failure != nil
	wantFailure := doc.FailingInvariant != ""

	switch {
	case !wantFailure && out.RunErr == nil:
		report.Status = "ok"
		if emitErr := f.Emit(report); emitErr != nil {
			return WrapExitError(ExitInternalBug, "emit output", emitErr)
		}
		return nil

	case wantFailure && reproducedFailure && out.Result.Failure.Name == doc.FailingInvariant:
		sec := report.AddSection("failure")
		sec.Add("name", out.Result.Failure.Name)
		sec.Add("reproduced", "true")
		sec.Add("trace", dir.TraceReplayedPath())
		report.Status = "invariant_failed"
		if emitErr := f.Emit(report); emitErr != nil {
			return WrapExitError(ExitInternalBug, "emit output", emitErr)
		}
		return NewExitError(ExitInvariantFailed, "replay reproduced the recorded invariant failure")

	default:
		sec := report.AddSection("failure")
		sec.Add("expected", doc.FailingInvariant)
		if reproducedFailure {
			sec.Add("got", out.Result.Failure.Name)
		} else if out.RunErr != nil {
			sec.Add("got", string(out.RunErr.Kind))
		} else {
			sec.Add("got", "ok")
		}
		sec.Add("trace", dir.TraceReplayedPath())
		report.Status = "system_not_deterministic"
		if emitErr := f.Emit(report); emitErr != nil {
			return WrapExitError(ExitInternalBug, "emit output", emitErr)
		}
		return NewExitError(ExitNotDeterministic, "replay did not reproduce the recorded outcome")
	}
}
