// Command flake runs the Flake reference adapter over stdin/stdout,
// speaking the nomercy wire protocol.
package main

import (
	"fmt"
	"os"

	"github.com/nomercy-sim/nomercy/internal/adapterref"
	"github.com/nomercy-sim/nomercy/internal/adapterref/flake"
)

func main() {
	sys := flake.New()
	if err := adapterref.Serve(os.Stdin, os.Stdout, sys); err != nil {
		fmt.Fprintln(os.Stderr, "flake:", err)
		os.Exit(1)
	}
}
