// Package main provides the entry point for the compactor CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/compactor/cmd/compactor/commands"
	"github.com/Sumatoshi-tech/compactor/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
