// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command radiosync runs the live-radio playback engine headless: it follows a
// radio server's now-playing feed, plays the audio transport through the HTTP
// sink and exposes status and control over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/radiosync/internal/config"
	"github.com/ManuGH/radiosync/internal/daemon"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		os.Exit(runValidate(os.Args[2:], os.Stdout, os.Stderr))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "radiosync", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
	}

	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: cfg.Version})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Strs("env_keys", loader.ConsumedKeys()).
		Msg("configuration loaded")

	if err := daemon.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed")
	}

	holder := config.NewConfigHolder(cfg, loader, path)
	app, _, err := daemon.Bootstrap(ctx, holder)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.bootstrap_failed").
			Msg("failed to build components")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Msg("starting radiosync")

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.exit_error").Msg("radiosync exited with error")
		os.Exit(1)
	}
}

// runValidate checks a config file and reports the result.
// Exit codes: 0 valid, 1 invalid, 2 usage error.
func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		_, _ = fmt.Fprintln(stderr, "Usage: radiosync validate -f config.yaml")
		return 2
	}

	cfg, err := config.NewLoader(file, version.Version).Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", file, err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "✓ %s is valid\n", file)
	_, _ = fmt.Fprintf(stdout, "  server:  %s\n", cfg.Server.BaseURL)
	_, _ = fmt.Fprintf(stdout, "  device:  %s\n", cfg.Device.ResolvedClass())
	_, _ = fmt.Fprintf(stdout, "  network: %s\n", cfg.Network.Class)
	_, _ = fmt.Fprintf(stdout, "  resume:  %s\n", cfg.Resume.Backend)
	return 0
}
