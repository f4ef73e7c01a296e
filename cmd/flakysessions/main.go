// Command flakysessions runs the FlakySessions reference adapter over
// stdin/stdout, speaking the nomercy wire protocol.
package main

import (
	"fmt"
	"os"

	"github.com/nomercy-sim/nomercy/internal/adapterref"
	"github.com/nomercy-sim/nomercy/internal/adapterref/flakysessions"
)

func main() {
	sys := flakysessions.New()
	if err := adapterref.Serve(os.Stdin, os.Stdout, sys); err != nil {
		fmt.Fprintln(os.Stderr, "flakysessions:", err)
		os.Exit(1)
	}
}
