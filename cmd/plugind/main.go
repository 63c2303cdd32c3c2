// Command plugind spawns Netdata-style external collector plugins, parses
// and dispatches their line protocol, and exposes their health and
// FUNCTION callbacks over an HTTP control API.
package main

import (
	"fmt"
	"os"

	"github.com/nodewatch/plugind/cmd/plugind/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
