// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/ManuGH/zkhbridge/internal/daemon"
	"github.com/ManuGH/zkhbridge/internal/hass"
	"github.com/ManuGH/zkhbridge/internal/jobs"
	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/version"
)

func runFetchCLI(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fetch(ctx, args, os.Stdout, os.Stderr, nil)
}

// fetch runs one refresh against the portal and prints the snapshot. It
// touches neither the history store nor the snapshot file, so it is safe
// to run next to a live daemon.
func fetch(ctx context.Context, args []string, stdout, stderr io.Writer, httpClient *http.Client) int {
	fs := flag.NewFlagSet("zkhbridge fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	sensors := fs.Bool("sensors", false, "print Home Assistant sensor entities instead of the snapshot")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	loader := config.NewLoader(resolveConfigPath(*configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	// stdout carries the JSON document only.
	zkhlog.Configure(zkhlog.Config{Level: cfg.LogLevel, Output: stderr, Service: daemon.ServiceName, Version: cfg.Version})

	refreshCtx, cancel := context.WithTimeout(ctx, cfg.Refresh.Timeout)
	defer cancel()

	snap, err := jobs.Refresh(refreshCtx, jobs.Deps{
		NewClient: daemon.PortalClientFactory(config.NewHolder(cfg, loader), httpClient),
		Credentials: jobs.Credentials{
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
		},
	})
	if err != nil {
		var se *jobs.StageError
		if errors.As(err, &se) {
			fmt.Fprintf(stderr, "Fetch failed at %s: %v\n", se.Stage, se.Err)
		} else {
			fmt.Fprintf(stderr, "Fetch failed: %v\n", err)
		}
		return 1
	}

	var out any = snap
	if *sensors {
		out = hass.Entities(cfg.Hass.EntryID, *snap)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
