// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sustainable-computing-io/erd/config"
	"github.com/sustainable-computing-io/erd/internal/logger"
	"github.com/sustainable-computing-io/erd/internal/meter"
	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/internal/version"
)

const (
	daemonCmd  = "daemon"
	measureCmd = "measure"
	clientCmd  = "client"
)

func main() {
	cmd, cfg, err := parseArgsAndConfig(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}

	out, err := logger.Writer(cfg.Log.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "erd: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = out.Close() }()

	logger := logger.New(cfg.Log.Level, cfg.Log.Format, out)
	logger.Info("erd version information", "build", version.Info())

	if err := run(context.Background(), logger, cmd, cfg, os.Stdout); err != nil {
		logger.Error("erd terminated with an error", "command", cmd, "error", err)
		_ = out.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cmd string, cfg *config.Config, stdout io.Writer) error {
	switch cmd {
	case daemonCmd:
		printConfigInfo(logger, cfg, stdout)
		return runDaemon(ctx, logger, cfg)
	case measureCmd, clientCmd:
		return runMeasure(ctx, logger, cmd, cfg, stdout)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	services, err := createServices(logger, cfg)
	if err != nil {
		return err
	}

	if err := service.Init(logger, services); err != nil {
		return err
	}

	logger.Info("Starting erd daemon")
	if err := service.Run(ctx, logger, services); err != nil {
		return err
	}
	logger.Info("Graceful shutdown completed")
	return nil
}

// runMeasure takes one measurement through the local backend or the daemon
func runMeasure(ctx context.Context, logger *slog.Logger, cmd string, cfg *config.Config, stdout io.Writer) error {
	m, err := createMeter(logger, cfg, cmd == clientCmd)
	if err != nil {
		return err
	}
	if err := m.Init(); err != nil {
		_ = m.Shutdown()
		return err
	}
	defer func() {
		if err := m.Shutdown(); err != nil {
			logger.Warn("meter shutdown failed", "error", err)
		}
	}()

	diff, err := m.Measure(ctx, cfg.Measure.Interval)
	if err != nil {
		return fmt.Errorf("measurement failed: %w", err)
	}
	joules, elapsed, err := meter.Joules(diff)
	if err != nil {
		return fmt.Errorf("measurement failed: %w", err)
	}

	watts := 0.0
	if elapsed > 0 {
		watts = joules / elapsed.Seconds()
	}
	logger.Debug("Measurement complete", "difference", diff.String())
	_, err = fmt.Fprintf(stdout, "domain=%s socket=%d energy=%.6fJ duration=%s power=%.3fW\n",
		m.Domain(), m.Socket(), joules, elapsed, watts)
	return err
}

func parseArgsAndConfig(args []string) (string, *config.Config, error) {
	const appName = "erd"
	app := kingpin.New(appName, "Energy readings of RAPL power domains.")
	app.Version(version.Info().String())

	configFiles := app.Flag("config.file", "Path to YAML configuration file; may be repeated, later files win").Strings()
	updateConfig := config.RegisterFlags(app)

	app.Command(daemonCmd, "Serve readings to local clients and Prometheus").Default()
	app.Command(measureCmd, "Measure the configured domain once using the local backend")
	app.Command(clientCmd, "Measure the configured domain once through the daemon")

	logger := logger.New("info", "text", os.Stderr)
	cmd, err := app.Parse(args)
	if err != nil {
		logger.Error("Error parsing arguments", "error", err.Error())
		return "", nil, err
	}

	cfg := config.DefaultConfig()
	if len(*configFiles) > 0 {
		logger.Info("Loading configuration files", "paths", *configFiles)
		loadedCfg, err := config.FromFiles(*configFiles...)
		if err != nil {
			logger.Error("Error loading config file", "error", err.Error())
			return "", nil, err
		}
		cfg = loadedCfg
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return "", nil, err
	}

	return cmd, cfg, nil
}

func printConfigInfo(logger *slog.Logger, cfg *config.Config, w io.Writer) {
	if !logger.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	fmt.Fprintf(w, `
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}
