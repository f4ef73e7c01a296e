package cli

import (
	"github.com/spf13/cobra"
)

// defaultExploreBudget leaves the run unbounded by default: `explore` is
// the long-running adversarial mode, meant to be left
// running (typically under a CI timeout or interrupted by the operator)
// rather than stopped after a fixed step count.
var defaultExploreBudget = budget{Infinite: true}

// NewExploreCommand implements `nomercy explore <system>`: the same
// qualify-then-drive-a-random-plan flow as `pray`, defaulting to an
// unbounded budget instead of a fixed step count.
func NewExploreCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "explore <system>",
		Short:        "run an open-ended adversarial simulation against a system",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
			return runAdversarial(cmd.Context(), opts, flagsSet(cmd), args[0], f, defaultExploreBudget)
		},
	}
	return cmd
}
