// Package main is the entry point for the plexmcp gateway CLI.
package main

import (
	"os"

	"github.com/plexmcp/plexmcp/cmd/gateway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
