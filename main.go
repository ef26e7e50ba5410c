// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"

	"dspctl/cmd"
	applog "dspctl/internal/log"
	"dspctl/pkg/build"
)

// main is the entry point of the control daemon. Without a subcommand it
// keeps the engine in sync with the preference file until interrupted.
func main() {
	// Development builds carry no link time flags; keep going with defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build info incomplete: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
