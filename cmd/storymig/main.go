// Package main provides the storymig CLI entry point.
// storymig runs schema and content migrations against a headless CMS space.
package main

import (
	"fmt"
	"os"

	"github.com/contentops/storymig/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
