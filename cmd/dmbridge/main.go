// Package main is the entry point for the dmbridge CLI.
package main

import (
	"os"

	"github.com/dmbridge/dmbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
