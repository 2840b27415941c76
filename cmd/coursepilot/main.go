// Command coursepilot is the entry point for the course materials assistant.
// It provides a CLI interface (via Cobra) for ingesting course documents and
// asking questions, plus an optional HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/KP1729/coursepilot/cmd/coursepilot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
