// Package main provides the entry point for the smartsearch CLI.
package main

import (
	"os"

	"github.com/quickkart/smartsearch/cmd/smartsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
