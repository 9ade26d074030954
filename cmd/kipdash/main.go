// Package main provides the kipdash command.
package main

import (
	"os"

	"github.com/kipmarine/kipdash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
