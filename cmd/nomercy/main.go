// Command nomercy is the deterministic adversarial simulation engine's
// command-line entry point: beg, pray, explore, replay, shrink.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nomercy-sim/nomercy/internal/cli"
)

// Run cancellation is not exposed externally: an operator
// interrupting nomercy terminates the process, taking the adapter child
// down with it, rather than triggering an in-process graceful shutdown.
func main() {
	root := cli.NewRootCommand()
	root.SilenceErrors = true
	root.SetContext(context.Background())

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "nomercy:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
