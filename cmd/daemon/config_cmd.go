// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/ManuGH/zkhbridge/internal/version"
)

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  zkhbridge config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  zkhbridge config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func configFlags(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := new(string)
	fs.StringVar(file, "file", "", "path to YAML configuration file")
	fs.StringVar(file, "f", "", "path to YAML configuration file (shorthand)")
	return fs, file
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs, file := configFlags("zkhbridge config validate", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := resolveConfigPath(*file)
	if configPath == "" {
		fmt.Fprintln(stderr, "Error: --file is required (no default config.yaml found in $ZKH_DATA)")
		return 2
	}

	loader := config.NewLoader(configPath, version.Version)
	if _, err := loader.Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}

	fmt.Fprintf(stdout, "✓ %s is valid\n", configPath)
	return 0
}

// runConfigDump prints the effective configuration (defaults + file + env)
// with secrets masked.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs, file := configFlags("zkhbridge config dump", stderr)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	loader := config.NewLoader(resolveConfigPath(*file), version.Version)
	cfg, err := loader.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	fileCfg := config.ToFileConfig(config.Redacted(cfg))

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "yaml", "yml":
		out, err := config.Marshal(fileCfg)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(out)
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", *format)
		return 2
	}
}
