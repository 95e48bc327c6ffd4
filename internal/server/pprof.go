// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/sustainable-computing-io/erd/internal/service"
)

const pprofPrefix = "/debug/pprof/"

// Pprof exposes the runtime profiles of the daemon on the api server
type Pprof struct {
	api    APIService
	logger *slog.Logger
}

var _ service.Initializer = (*Pprof)(nil)

func NewPprof(api APIService, logger *slog.Logger) *Pprof {
	return &Pprof{
		api:    api,
		logger: logger.With("service", "pprof"),
	}
}

func (p *Pprof) Name() string {
	return "pprof"
}

func (p *Pprof) Init() error {
	p.logger.Info("Enabling profiling endpoints", "prefix", pprofPrefix)
	return p.api.Register(pprofPrefix, "pprof", "Profiling Data", pprofHandlers())
}

func pprofHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pprofPrefix, pprof.Index)
	for name, h := range map[string]http.HandlerFunc{
		"cmdline": pprof.Cmdline,
		"profile": pprof.Profile,
		"symbol":  pprof.Symbol,
		"trace":   pprof.Trace,
	} {
		mux.HandleFunc(pprofPrefix+name, h)
	}
	return mux
}
