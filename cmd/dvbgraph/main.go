// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// dvbgraph validates configurations and drives the tuner pipeline against
// a simulated tuner card.
//
// Usage:
//
//	dvbgraph validate -f config.yaml
//	dvbgraph simulate -f config.yaml [-channel N] [-scan] [-metrics-addr :9090] [-hold]
//	dvbgraph version
//
// Exit codes:
//   - 0: success
//   - 1: configuration or pipeline error
//   - 2: usage error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/dvbgraph/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "simulate":
		return runSimulate(args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  dvbgraph validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  dvbgraph simulate [--file|-f config.yaml] [-channel N] [-scan] [-metrics-addr :9090] [-hold]")
	fmt.Fprintln(w, "  dvbgraph version")
}
