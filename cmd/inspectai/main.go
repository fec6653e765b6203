// Package main is the entry point for the inspectai CLI.
package main

import (
	"os"

	"github.com/jmylchreest/inspectai/cmd/inspectai/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
