// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"k8s.io/utils/ptr"

	"github.com/sustainable-computing-io/erd/config"
	"github.com/sustainable-computing-io/erd/internal/exporter/mcp"
	"github.com/sustainable-computing-io/erd/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/erd/internal/exporter/stdout"
	"github.com/sustainable-computing-io/erd/internal/ipc"
	"github.com/sustainable-computing-io/erd/internal/meter"
	"github.com/sustainable-computing-io/erd/internal/server"
	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/pkg/erd"
	"github.com/sustainable-computing-io/erd/pkg/erd/nop"
	"github.com/sustainable-computing-io/erd/pkg/erd/powercap"
)

// createNative returns the backend that serves the native calls
func createNative(logger *slog.Logger, cfg *config.Config, viaDaemon bool) (erd.Native, error) {
	if viaDaemon {
		return ipc.NewClient(
			ipc.WithLogger(logger),
			ipc.WithSocketPath(cfg.Daemon.Socket),
		), nil
	}

	switch cfg.Meter.Backend {
	case config.BackendPowercap:
		lib, err := powercap.New(
			powercap.WithLogger(logger),
			powercap.WithSysFSPath(cfg.Host.SysFS),
		)
		if err != nil {
			return nil, err
		}
		return lib, nil
	case config.BackendNop:
		return nop.New(nop.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown meter backend: %s", cfg.Meter.Backend)
	}
}

func createMeter(logger *slog.Logger, cfg *config.Config, viaDaemon bool) (*meter.Meter, error) {
	domain, err := cfg.MeterDomain()
	if err != nil {
		return nil, err
	}
	lib, err := createNative(logger, cfg, viaDaemon)
	if err != nil {
		return nil, err
	}
	return meter.New(lib, domain, cfg.Meter.Socket, meter.WithLogger(logger)), nil
}

// createServices returns the daemon services in initialization order. The
// meter comes first so that it is shut down after everything reading from it.
func createServices(logger *slog.Logger, cfg *config.Config) ([]service.Service, error) {
	logger.Debug("Creating all services")

	m, err := createMeter(logger, cfg, false)
	if err != nil {
		return nil, err
	}

	services := []service.Service{
		m,
		ipc.NewServer(m,
			ipc.WithLogger(logger),
			ipc.WithSocketPath(cfg.Daemon.Socket),
		),
	}

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		services = append(services, stdout.NewExporter(m,
			stdout.WithLogger(logger),
			stdout.WithInterval(cfg.Measure.Interval),
		))
	}

	if cfg.APIServerEnabled() {
		apiServer := server.NewAPIServer(
			server.WithLogger(logger),
			server.WithListen(cfg.Web.ListenAddresses, cfg.Web.Config),
		)
		services = append(services, apiServer, server.NewProbe(apiServer, m, logger))

		if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
			services = append(services, prometheus.NewExporter(apiServer,
				prometheus.WithLogger(logger),
				prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
				prometheus.WithCollectors(prometheus.CreateCollectors(m, prometheus.WithLogger(logger))),
			))
		}

		if ptr.Deref(cfg.Exporter.MCP.Enabled, false) {
			services = append(services, mcp.NewServer(m, apiServer, logger,
				mcp.WithTransport(cfg.Exporter.MCP.Transport),
				mcp.WithPath(cfg.Exporter.MCP.Path),
			))
		}

		if ptr.Deref(cfg.Debug.Pprof.Enabled, false) {
			services = append(services, server.NewPprof(apiServer, logger))
		}
	}

	services = append(services,
		service.NewSignalHandler(logger, os.Interrupt, syscall.SIGTERM),
		service.NewSystemdNotifier(logger),
	)
	return services, nil
}
