// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// Reader is the measurement session served to clients. *erd.Handle implements it.
type Reader interface {
	ObtainReadings() (erd.Reading, error)
	Subtract(lhs, rhs erd.Reading) (erd.Difference, error)
}

// Server answers requests from every connected client with a single shared Reader
type Server struct {
	logger *slog.Logger
	path   string

	// reader is not safe for concurrent use
	mu     sync.Mutex
	reader Reader

	listener  net.Listener
	closeOnce sync.Once

	connsMu sync.Mutex
	conns   map[string]net.Conn
}

var (
	_ service.Initializer = (*Server)(nil)
	_ service.Runner      = (*Server)(nil)
	_ service.Shutdowner  = (*Server)(nil)
)

// NewServer creates a Server for reader
func NewServer(reader Reader, applyOpts ...OptionFn) *Server {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Server{
		logger: opts.logger.With("service", "ipc-server"),
		path:   opts.socketPath,
		reader: reader,
		conns:  make(map[string]net.Conn),
	}
}

func (s *Server) Name() string {
	return "ipc-server"
}

// Path returns the unix socket the server listens on
func (s *Server) Path() string {
	return s.path
}

// Init removes a stale socket file and starts listening
func (s *Server) Init() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket %s: %w", s.path, err)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.path, err)
	}
	s.listener = listener
	s.logger.Info("Listening for clients", "socket", s.path)
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("ipc server is not initialized")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		s.closeAll()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return s.accept(g)
	})

	return g.Wait()
}

func (s *Server) accept(g *errgroup.Group) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		id := uuid.NewString()
		if !s.track(id, conn) {
			_ = conn.Close()
			return nil
		}
		g.Go(func() error {
			defer s.untrack(id)
			s.serve(id, conn)
			return nil
		})
	}
}

// serve answers requests on conn until the client disconnects. A message that
// cannot be decoded ends the session since the stream cannot be resynchronized.
func (s *Server) serve(id string, conn net.Conn) {
	logger := s.logger.With("session", id)
	logger.Debug("Client connected")

	buf := make([]byte, RequestSize)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Debug("Client disconnected")
			} else {
				logger.Warn("Error reading request", "error", err)
			}
			return
		}

		var req Request
		if err := req.UnmarshalBinary(buf); err != nil {
			logger.Warn("Dropping client", "error", err)
			return
		}

		resp := s.handle(logger, req)
		data, _ := resp.MarshalBinary()
		if _, err := conn.Write(data); err != nil {
			logger.Warn("Error writing response", "op", req.Op, "error", err)
			return
		}
	}
}

func (s *Server) handle(logger *slog.Logger, req Request) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := Response{Op: req.Op, Status: ResponseError}
	switch req.Op {
	case OpObtainReadings:
		r, err := s.reader.ObtainReadings()
		if err != nil {
			logger.Warn("Error obtaining readings", "error", err)
			return resp
		}
		resp.Readings = r.Native()

	case OpSubtract:
		d, err := s.reader.Subtract(erd.ReadingFromNative(req.LHS), erd.ReadingFromNative(req.RHS))
		if err != nil {
			logger.Warn("Error subtracting readings", "error", err)
			return resp
		}
		resp.Readings = d.Native()
	}

	resp.Status = ResponseSuccess
	return resp
}

// track registers conn; it reports false once the server is shutting down
func (s *Server) track(id string, conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[id] = conn
	return true
}

func (s *Server) untrack(id string) {
	s.connsMu.Lock()
	conn, ok := s.conns[id]
	delete(s.conns, id)
	s.connsMu.Unlock()

	if ok {
		_ = conn.Close()
	}
}

// closeAll stops accepting and disconnects every client
func (s *Server) closeAll() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("Error closing listener", "error", err)
			}
		}

		s.connsMu.Lock()
		conns := s.conns
		s.conns = nil
		s.connsMu.Unlock()

		for id, conn := range conns {
			s.logger.Debug("Closing client connection", "session", id)
			_ = conn.Close()
		}
	})
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down ipc server")
	s.closeAll()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove socket %s: %w", s.path, err)
	}
	return nil
}
