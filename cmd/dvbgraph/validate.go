// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize/english"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/config"
	"github.com/ManuGH/dvbgraph/internal/version"
)

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dvbgraph validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	file = strings.TrimSpace(file)
	if file == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	cfg, err := config.NewLoader(file, version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", file, err)
		return 1
	}

	// The channel file is part of the configuration surface.
	if cfg.Channels.Path != "" {
		store, err := channels.Open(cfg.Channels.Path)
		if err != nil {
			fmt.Fprintf(stderr, "Channel file error in %s:\n  %v\n", cfg.Channels.Path, err)
			return 1
		}
		fmt.Fprintf(stdout, "✓ %s: %s\n", cfg.Channels.Path, english.Plural(len(store.All()), "channel", "channels"))
	}

	fmt.Fprintf(stdout, "✓ %s is valid\n", file)
	return 0
}
