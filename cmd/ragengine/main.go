// Package main provides the entry point for the ragengine CLI.
package main

import (
	"fmt"
	"os"

	"scalable-rag-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
