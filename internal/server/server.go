// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/exporter-toolkit/web"
	"github.com/sustainable-computing-io/erd/config"
	"github.com/sustainable-computing-io/erd/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may delay Shutdown
const shutdownTimeout = 5 * time.Second

// APIService is the HTTP surface erd's exporters and health checks register on
type APIService interface {
	service.Service
	Register(endpoint, summary, description string, handler http.Handler) error
}

// route is one entry of the landing page
type route struct {
	path        string
	summary     string
	description string
}

// APIServer serves the registered endpoints over HTTP(S) using the
// exporter-toolkit web configuration (TLS, basic auth)
type APIServer struct {
	logger    *slog.Logger
	server    *http.Server
	mux       *http.ServeMux
	webConfig *web.FlagConfig

	mu     sync.RWMutex
	routes []route
}

var _ APIService = (*APIServer)(nil)

type Opts struct {
	logger    *slog.Logger
	webConfig *web.FlagConfig
}

// OptionFn sets one or more options in Opts
type OptionFn func(*Opts)

// WithLogger sets the logger for the APIServer
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithListen sets the listen addresses and the web config file (empty for plain HTTP)
func WithListen(addr []string, webConfigFile string) OptionFn {
	return func(o *Opts) {
		o.webConfig = &web.FlagConfig{
			WebListenAddresses: &addr,
			WebConfigFile:      &webConfigFile,
		}
	}
}

// WithWebConfig sets the exporter-toolkit flag config directly
func WithWebConfig(cfg *web.FlagConfig) OptionFn {
	return func(o *Opts) {
		o.webConfig = cfg
	}
}

// DefaultOpts listens on config.DefaultPort without TLS
func DefaultOpts() Opts {
	noWebConfig := ""
	return Opts{
		logger: slog.Default(),
		webConfig: &web.FlagConfig{
			WebListenAddresses: &[]string{config.DefaultPort},
			WebConfigFile:      &noWebConfig,
		},
	}
}

// NewAPIServer creates an APIServer; nothing listens until Run
func NewAPIServer(applyOpts ...OptionFn) *APIServer {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	mux := http.NewServeMux()
	return &APIServer{
		logger:    opts.logger.With("service", "api-server"),
		mux:       mux,
		server:    &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		webConfig: opts.webConfig,
	}
}

func (s *APIServer) Name() string {
	return "api-server"
}

// Addresses returns the configured listen addresses
func (s *APIServer) Addresses() []string {
	if s.webConfig == nil || s.webConfig.WebListenAddresses == nil {
		return nil
	}
	return slices.Clone(*s.webConfig.WebListenAddresses)
}

// Init installs the landing page listing every registered endpoint
func (s *APIServer) Init() error {
	s.logger.Info("Initializing API server", "addresses", s.Addresses())
	s.mux.HandleFunc("/", s.serveLandingPage)
	return nil
}

func (s *APIServer) serveLandingPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, s.landingPage()); err != nil {
		s.logger.Error("failed to write landing page", "error", err)
	}
}

func (s *APIServer) landingPage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	b.WriteString("<html>\n<head><title>erd</title></head>\n<body>\n")
	b.WriteString("<h1>Energy Readings Daemon</h1>\n<p>Available endpoints:</p>\n<ul>\n")
	for _, ep := range s.routes {
		fmt.Fprintf(&b, "\t<li><a href=\"%s\">%s</a> %s</li>\n",
			html.EscapeString(ep.path), html.EscapeString(ep.summary), html.EscapeString(ep.description))
	}
	b.WriteString("</ul>\n</body>\n</html>\n")
	return b.String()
}

// Run serves until ctx is done or the listener fails. The listener goroutine
// outlives Run until Shutdown closes the server.
func (s *APIServer) Run(ctx context.Context) error {
	s.logger.Info("Serving API", "addresses", s.Addresses())
	errCh := make(chan error, 1)
	go func() {
		errCh <- web.ListenAndServe(s.server, s.webConfig, s.logger)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server stopping", "reason", ctx.Err())
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("API server failed", "addresses", s.Addresses(), "error", err)
		return err
	}
}

// Shutdown closes the listeners and waits up to shutdownTimeout for
// in-flight requests
func (s *APIServer) Shutdown() error {
	s.logger.Info("Shutting down API server", "addresses", s.Addresses())
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Register mounts handler at endpoint and lists it on the landing page.
// Endpoints must be absolute and registered once.
func (s *APIServer) Register(endpoint, summary, description string, handler http.Handler) error {
	if !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("invalid endpoint %q: must start with /", endpoint)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range s.routes {
		if ep.path == endpoint {
			return fmt.Errorf("endpoint %s already registered", endpoint)
		}
	}

	s.mux.Handle(endpoint, handler)
	s.routes = append(s.routes, route{path: endpoint, summary: summary, description: description})
	s.logger.Debug("Endpoint registered", "endpoint", endpoint)
	return nil
}
