// Command depotctl is an administrative CLI over a depot store registry:
// inspect configuration, list and manipulate stored files, and run a
// standalone HTTP server for the configured stores.
package main

import (
	"fmt"
	"os"

	"github.com/depotgo/depot/cmd/depotctl/commands"
)

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
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
