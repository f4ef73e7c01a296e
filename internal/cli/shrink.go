package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nomercy-sim/nomercy/internal/artifact"
	"github.com/nomercy-sim/nomercy/internal/fault"
	"github.com/nomercy-sim/nomercy/internal/runlog"
	"github.com/nomercy-sim/nomercy/internal/shrink"
)

// NewShrinkCommand implements `nomercy shrink <trace.json>`: re-minimizes
// an existing failing run. The trace alone carries no ops/faults, so
// shrink reads the sibling repro.json written alongside every failing
// trace (every fatal error writes a repro before the process exits) and
// re-derives operations/faults from there. Does not accept --seed.
func NewShrinkCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "shrink <trace.json>",
		Short:        "minimize an existing failing trace",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShrink(opts, flagsSet(cmd), args[0], cmd)
		},
	}
	return cmd
}

func siblingReproPath(tracePath string) string {
	dir := filepath.Dir(tracePath)
	name := filepath.Base(tracePath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	// trace.json -> repro.json; trace.shrunk.json -> repro.shrunk.json
	name = strings.Replace(name, "trace", "repro", 1)
	return filepath.Join(dir, name+".json")
}

func runShrink(opts *RootOptions, flags map[string]bool, tracePath string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	if flags["seed"] {
		return NewExitError(ExitAdapterBuildError, "shrink does not accept --seed")
	}

	cfg, invariants, invRaw, _, err := resolveInvariantsOnly(opts, flags)
	if err != nil {
		return err
	}

	reproPath := siblingReproPath(tracePath)
	doc, err := loadRepro(reproPath)
	if err != nil {
		return WrapExitError(ExitAdapterBuildError, fmt.Sprintf("load sibling repro for %s", tracePath), err)
	}
	if doc.FailingInvariant == "" {
		return NewExitError(ExitAdapterBuildError, fmt.Sprintf("%s: no failing_invariant recorded, nothing to shrink", reproPath))
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

	start := shrink.Candidate{Ops: doc.Ops, Faults: doc.Faults.Faults()}
	minimized, minOut, err := run.minimizeFailure(ctx, doc.FailingInvariant, start,
		func(s *fault.Schedule) fault.ResourceMap { return resourceMapFromFaults(s.Faults()) })
	if err != nil {
		return WrapExitError(ExitInternalBug, "shrink", err)
	}

	dir := artifact.Dir{Path: filepath.Dir(tracePath)}
	if err := dir.WriteTraceShrunk(minOut.Trace.ToValue()); err != nil {
		return WrapExitError(ExitInternalBug, "write shrunk trace", err)
	}
	if err := dir.WriteReproShrunk(buildReproWithSchedule(run, minimized.Faults, minimized.Ops, minOut)); err != nil {
		return WrapExitError(ExitInternalBug, "write shrunk repro", err)
	}

	report := &Report{Status: "ok"}
	sec := report.AddSection("shrink")
	sec.Add("failing_invariant", doc.FailingInvariant)
	sec.Add("original_ops", fmt.Sprintf("%d", len(doc.Ops)))
	sec.Add("original_faults", fmt.Sprintf("%d", len(doc.Faults.Faults())))
	sec.Add("shrunk_ops", fmt.Sprintf("%d", len(minimized.Ops)))
	sec.Add("shrunk_faults", fmt.Sprintf("%d", len(minimized.Faults)))

	if err := f.Emit(report); err != nil {
		return WrapExitError(ExitInternalBug, "emit output", err)
	}
	return nil
}
