// Command msgwireclient is the CLI front end for pkg/client. It loads a
// YAML config file, builds a Client from it, and exposes connect/send/
// version subcommands. Modeled on the teacher's client/cli/main.go
// banner-and-subcommand shape, reworked onto Cobra per §10 of the expanded
// spec rather than the teacher's flag-string switch.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
