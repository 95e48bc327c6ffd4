// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/sustainable-computing-io/erd/internal/arena"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

type attributes struct {
	domain erd.Domain
	socket uint32
}

// Client implements erd.Native by forwarding measurements to the daemon. Each
// handle owns one connection. The daemon decides which domain is measured;
// the configured domain and socket are kept for logging only.
type Client struct {
	logger      *slog.Logger
	path        string
	dialTimeout time.Duration
	dialTries   uint
	dialDelay   time.Duration

	attrs *arena.Arena[attributes]
	conns *arena.Arena[net.Conn]
}

var _ erd.Native = (*Client)(nil)

// NewClient creates a Client connecting to the daemon socket
func NewClient(applyOpts ...OptionFn) *Client {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Client{
		logger:      opts.logger.With("native", "ipc"),
		path:        opts.socketPath,
		dialTimeout: opts.dialTimeout,
		dialTries:   opts.dialTries,
		dialDelay:   opts.dialDelay,
		attrs:       arena.New[attributes](),
		conns:       arena.New[net.Conn](),
	}
}

func (c *Client) Name() string {
	return "ipc"
}

func (c *Client) AttrCreate(_ *erd.ErrorDescriptor) (erd.AttrRef, erd.StatusCode) {
	return erd.AttrRef(c.attrs.Insert(attributes{})), erd.StatusSuccess
}

func (c *Client) AttrSetDomain(attr erd.AttrRef, domain erd.Domain) erd.StatusCode {
	if !domain.Valid() {
		return erd.StatusInvalidArgument
	}
	if !c.attrs.Update(uintptr(attr), func(a *attributes) { a.domain = domain }) {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (c *Client) AttrSetSocket(attr erd.AttrRef, socket uint32) erd.StatusCode {
	if !c.attrs.Update(uintptr(attr), func(a *attributes) { a.socket = socket }) {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (c *Client) AttrDestroy(attr erd.AttrRef) erd.StatusCode {
	if attr == 0 {
		return erd.StatusSuccess
	}
	if _, ok := c.attrs.Remove(uintptr(attr)); !ok {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (c *Client) HandleCreate(attr erd.AttrRef, ed *erd.ErrorDescriptor) (erd.HandleRef, erd.StatusCode) {
	a, ok := c.attrs.Get(uintptr(attr))
	if !ok {
		ed.Fill("unknown attributes")
		return 0, erd.StatusInvalidArgument
	}

	conn, err := c.dial()
	if err != nil {
		ed.Fill(err.Error())
		return 0, erd.StatusSystemError
	}

	c.logger.Debug("Connected to daemon", "socket", c.path, "domain", a.domain, "cpu-socket", a.socket)
	return erd.HandleRef(c.conns.Insert(conn)), erd.StatusSuccess
}

// dial connects to the daemon, retrying while it is starting up
func (c *Client) dial() (net.Conn, error) {
	return retry.NewWithData[net.Conn](
		retry.Attempts(c.dialTries),
		retry.Delay(c.dialDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("Daemon not reachable", "socket", c.path, "attempt", n+1, "error", err)
		}),
	).Do(func() (net.Conn, error) {
		return net.DialTimeout("unix", c.path, c.dialTimeout)
	})
}

func (c *Client) HandleDestroy(handle erd.HandleRef) erd.StatusCode {
	if handle == 0 {
		return erd.StatusSuccess
	}
	conn, ok := c.conns.Remove(uintptr(handle))
	if !ok {
		return erd.StatusInvalidArgument
	}
	if err := conn.Close(); err != nil {
		c.logger.Warn("Error closing daemon connection", "error", err)
		return erd.StatusSystemError
	}
	return erd.StatusSuccess
}

func (c *Client) ObtainReadings(handle erd.HandleRef, ed *erd.ErrorDescriptor) (erd.NativeReadings, erd.StatusCode) {
	return c.call(handle, Request{Op: OpObtainReadings}, ed)
}

func (c *Client) SubtractReadings(handle erd.HandleRef, lhs, rhs erd.NativeReadings) (erd.NativeReadings, erd.StatusCode) {
	return c.call(handle, Request{Op: OpSubtract, LHS: lhs, RHS: rhs}, nil)
}

// call performs one request/response round trip. Transport failures map to
// system_error, a request the daemon could not serve to generic_error.
func (c *Client) call(handle erd.HandleRef, req Request, ed *erd.ErrorDescriptor) (erd.NativeReadings, erd.StatusCode) {
	conn, ok := c.conns.Get(uintptr(handle))
	if !ok {
		ed.Fill("unknown handle")
		return erd.NativeReadings{}, erd.StatusInvalidArgument
	}

	resp, err := roundTrip(conn, req)
	if err != nil {
		c.logger.Debug("Request to daemon failed", "op", req.Op, "error", err)
		ed.Fill(err.Error())
		return erd.NativeReadings{}, erd.StatusSystemError
	}
	if resp.Status != ResponseSuccess {
		ed.Fill(fmt.Sprintf("daemon failed to serve %s", req.Op))
		return erd.NativeReadings{}, erd.StatusGenericError
	}
	return resp.Readings, erd.StatusSuccess
}

func roundTrip(conn net.Conn, req Request) (Response, error) {
	data, _ := req.MarshalBinary()
	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}

	buf := make([]byte, ResponseSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return Response{}, errors.New("daemon closed the connection")
		}
		return Response{}, fmt.Errorf("failed to receive response: %w", err)
	}

	var resp Response
	if err := resp.UnmarshalBinary(buf); err != nil {
		return Response{}, err
	}
	if resp.Op != req.Op {
		return Response{}, fmt.Errorf("%w: %s response to %s request", ErrBadMessage, resp.Op, req.Op)
	}
	return resp, nil
}
