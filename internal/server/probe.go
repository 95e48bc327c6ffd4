// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// Sampler is the measured domain the readiness probe samples
type Sampler interface {
	ObtainReadings() (erd.Reading, error)
}

// Probe serves the liveness and readiness endpoints. The daemon is live while
// it serves HTTP and ready while its domain can be read.
type Probe struct {
	api     APIService
	sampler Sampler
	logger  *slog.Logger
}

var _ service.Initializer = (*Probe)(nil)

func NewProbe(api APIService, sampler Sampler, logger *slog.Logger) *Probe {
	return &Probe{
		api:     api,
		sampler: sampler,
		logger:  logger.With("service", "probe"),
	}
}

func (p *Probe) Name() string {
	return "probe"
}

func (p *Probe) Init() error {
	return p.api.Register("/probe/", "probe", "Health check endpoints", p.handlers())
}

func (p *Probe) handlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /probe/readyz", p.readyz)
	mux.HandleFunc("GET /probe/livez", p.livez)
	return mux
}

func (p *Probe) readyz(w http.ResponseWriter, _ *http.Request) {
	r, err := p.sampler.ObtainReadings()
	if err != nil {
		p.logger.Warn("Readiness check failed", "error", err)
		respond(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
			"code":   erd.StatusOf(err).String(),
		})
		return
	}
	respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"reading": r.String(),
	})
}

func (p *Probe) livez(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "alive"})
}

func respond(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
