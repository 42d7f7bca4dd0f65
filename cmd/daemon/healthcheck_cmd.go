// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func runHealthcheckCLI(args []string) int {
	return healthcheck(args, os.Stdout, os.Stderr)
}

func healthcheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "live", "healthcheck mode: live (default) or ready")
	addr := fs.String("addr", "http://localhost:8088", "base URL of the running daemon")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := "/healthz"
	if *mode == "ready" {
		path = "/readyz"
	}

	target := strings.TrimRight(*addr, "/") + path
	client := http.Client{Timeout: *timeout}

	resp, err := client.Get(target)
	if err != nil {
		fmt.Fprintf(stderr, "Healthcheck failed (network): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Healthcheck failed (status): %s\n", resp.Status)
		return 1
	}

	fmt.Fprintf(stdout, "Healthcheck successful (%s)\n", *mode)
	return 0
}
