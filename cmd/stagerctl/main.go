// Command stagerctl is the remote management client for stager servers.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/stager/cmd/stagerctl/commands"
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
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
