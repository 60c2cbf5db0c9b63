// Package main provides the entry point for the medialens CLI.
package main

import (
	"os"

	"github.com/medialens/medialens/cmd/medialens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
