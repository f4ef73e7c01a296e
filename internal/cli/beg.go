package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/qualify"
)

// qualifySystem runs static determinism qualification against a
// manifest and invariant file, as both `beg` and `pray`'s implicit
// qualification step need.
func qualifySystem(manifestRaw []byte, manifestJSON jsonval.Value, invariantsRaw []byte, invariantsJSON jsonval.Value) (*qualify.Result, error) {
	return qualify.Qualify(manifestRaw, manifestJSON, invariantsRaw, invariantsJSON)
}

// NewBegCommand implements `nomercy beg <system>`: static determinism
// qualification, issuing no commands.
func NewBegCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "beg <system>",
		Short:        "statically qualify a system for deterministic simulation",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBeg(opts, flagsSet(cmd), args[0], cmd)
		},
	}
	return cmd
}

func runBeg(opts *RootOptions, flags map[string]bool, systemDir string, cmd *cobra.Command) error {
	run, err := resolveRun(opts, flags, systemDir)
	if err != nil {
		return err
	}

	f := &OutputFormatter{Format: run.Cfg.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: run.Cfg.Verbose}

	manifestBytes, err := jsonval.MarshalCanonical(run.Sys.ManifestRaw)
	if err != nil {
		return WrapExitError(ExitInternalBug, "canonicalize manifest", err)
	}

	res, err := qualifySystem(manifestBytes, run.Sys.ManifestRaw, run.InvariantsBytes, run.InvariantsRaw)
	if err != nil {
		return WrapExitError(ExitInternalBug, "qualify", err)
	}

	report := &Report{}
	seedSec := report.AddSection("seed")
	seedSec.Add("value", fmt.Sprintf("%d", run.Seed))

	qualSec := report.AddSection("qualification")
	qualSec.Add("adapter_manifest_hash", run.Sys.ManifestHash)
	qualSec.Add("deterministic", fmt.Sprintf("%t", res.Deterministic))
	for i, finding := range res.Findings {
		qualSec.Add(fmt.Sprintf("finding[%d]", i), finding.Code+": "+finding.Message)
	}

	if !res.Deterministic {
		report.Status = "system_not_deterministic"
		if emitErr := f.Emit(report); emitErr != nil {
			return WrapExitError(ExitInternalBug, "emit output", emitErr)
		}
		return NewExitError(ExitNotDeterministic, "system failed static determinism qualification")
	}

	report.Status = "ok"
	if err := f.Emit(report); err != nil {
		return WrapExitError(ExitInternalBug, "emit output", err)
	}
	return nil
}
