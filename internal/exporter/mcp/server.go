// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/internal/version"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

type (
	Initializer = service.Initializer
	APIRegistry = interface {
		Register(endpoint, summary, description string, handler http.Handler) error
	}
)

// Meter is the measured domain the tools read from
type Meter interface {
	ObtainReadings() (erd.Reading, error)
	Measure(ctx context.Context, interval time.Duration) (erd.Difference, error)
	Domain() erd.Domain
	Socket() uint32
}

// Server exposes the meter as Model Context Protocol tools over HTTP
type Server struct {
	logger      *slog.Logger
	meter       Meter
	server      *mcp.Server
	apiRegistry APIRegistry

	httpPath    string
	transport   string
	maxInterval time.Duration
}

var _ Initializer = (*Server)(nil)

// Option defines functional options for MCP server configuration
type Option func(*Server)

// WithPath sets the endpoint the handler is registered on
func WithPath(path string) Option {
	return func(s *Server) {
		s.httpPath = path
	}
}

// WithTransport selects the HTTP transport: sse or streamable
func WithTransport(transport string) Option {
	return func(s *Server) {
		s.transport = transport
	}
}

// WithMaxInterval caps the interval a measure call may wait
func WithMaxInterval(d time.Duration) Option {
	return func(s *Server) {
		s.maxInterval = d
	}
}

// NewServer creates a new MCP server instance
func NewServer(m Meter, apiRegistry APIRegistry, logger *slog.Logger, options ...Option) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "erd",
		Version: version.Info().Version,
	}, nil)

	server := &Server{
		logger:      logger.With("service", "mcp"),
		meter:       m,
		server:      mcpServer,
		apiRegistry: apiRegistry,
		httpPath:    "/mcp",
		transport:   TransportStreamable,
		maxInterval: time.Minute,
	}

	for _, option := range options {
		option(server)
	}

	server.registerTools()

	return server
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "obtain_readings",
		Description: "Read the cumulative energy and time counters of the measured power domain",
	}, s.handleObtainReadings)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "measure",
		Description: "Measure the energy and average power of the power domain over an interval",
	}, s.handleMeasure)
}

func (s *Server) Init() error {
	s.logger.Info("Initializing MCP server", "transport", s.transport, "http_path", s.httpPath)

	getServer := func(*http.Request) *mcp.Server { return s.server }

	var handler http.Handler
	switch s.transport {
	case TransportSSE:
		handler = mcp.NewSSEHandler(getServer)
	case TransportStreamable:
		handler = mcp.NewStreamableHTTPHandler(getServer, nil)
	default:
		return fmt.Errorf("unknown mcp transport: %s", s.transport)
	}

	if err := s.apiRegistry.Register(
		s.httpPath,
		"MCP Server",
		"Model Context Protocol server for querying energy readings",
		handler,
	); err != nil {
		return err
	}

	s.logger.Info("Registered MCP HTTP handler", "path", s.httpPath)
	return nil
}

// Name implements the Service interface
func (s *Server) Name() string {
	return "mcp"
}
