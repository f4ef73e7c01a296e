package cli

import (
	"github.com/spf13/cobra"
)

// defaultPrayBudget bounds a `pray` run when no --budget is given, so the
// default invocation terminates in finite time (treats
// unbounded exploration as `explore`'s job, not `pray`'s).
var defaultPrayBudget = budget{Steps: 1000}

// NewPrayCommand implements `nomercy pray <system>`: a bounded,
// seed-deterministic adversarial run. Qualifies the system implicitly if
// not already qualified, then drives a random plan under the resolved
// fault schedule, writing repro.json/trace.json (and their shrunk
// counterparts) on failure.
func NewPrayCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pray <system>",
		Short:        "run a bounded adversarial simulation against a system",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
			return runAdversarial(cmd.Context(), opts, flagsSet(cmd), args[0], f, defaultPrayBudget)
		},
	}
	return cmd
}
