package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions holds the persistent flags common to every subcommand.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Seed       string // decimal seed; empty means "derive from engine+manifest"
	Faults     []string
	Invariants string
	Budget     string // "steps=<n>" | "time=<dur>" | "infinite"
	CI         bool
	Trace      bool
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand constructs the nomercy root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nomercy",
		Short: "nomercy - deterministic adversarial simulation engine",
		Long:  "nomercy is a deterministic adversarial simulation engine: it drives a system under test through injected failure schedules, continuously evaluating invariants, and emits byte-identical-replayable reproductions on violation.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose diagnostic output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Seed, "seed", "", "run seed (decimal); derived from engine version + adapter manifest hash when absent")
	cmd.PersistentFlags().StringArrayVar(&opts.Faults, "fault", nil, "injected fault spec, e.g. crash@5 (repeatable)")
	cmd.PersistentFlags().StringVar(&opts.Invariants, "invariants", "", "path to the invariant file")
	cmd.PersistentFlags().StringVar(&opts.Budget, "budget", "", "steps=<n> | time=<dur> | infinite")
	cmd.PersistentFlags().BoolVar(&opts.CI, "ci", false, "fail fast, suppress interactive affordances")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "always write trace.json, even on success")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewBegCommand(opts))
	cmd.AddCommand(NewPrayCommand(opts))
	cmd.AddCommand(NewExploreCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewShrinkCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// flagsSet collects which persistent flags were explicitly set on the
// command line, for config.Resolve's flags>file>env>defaults precedence.
func flagsSet(cmd *cobra.Command) map[string]bool {
	set := make(map[string]bool)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	return set
}
