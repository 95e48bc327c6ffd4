// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package meter owns the measurement handle shared by the daemon's services
package meter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// Source takes and subtracts readings
type Source interface {
	ObtainReadings() (erd.Reading, error)
	Subtract(lhs, rhs erd.Reading) (erd.Difference, error)
}

// Meter is a service owning the attributes and handle of one domain. It is
// safe for concurrent use; calls to the handle are serialized.
type Meter struct {
	logger *slog.Logger
	clock  clock.Clock
	lib    erd.Native
	domain erd.Domain
	socket uint32

	mu     sync.Mutex
	attr   *erd.Attributes
	handle *erd.Handle
}

var (
	_ service.Initializer = (*Meter)(nil)
	_ service.Shutdowner  = (*Meter)(nil)
	_ Source              = (*Meter)(nil)
)

type Opts struct {
	logger *slog.Logger
	clock  clock.Clock
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Meter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock Measure waits on
func WithClock(c clock.Clock) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// New creates a Meter for domain on socket. No native resources are
// allocated before Init.
func New(lib erd.Native, domain erd.Domain, socket uint32, applyOpts ...OptionFn) *Meter {
	opts := Opts{
		logger: slog.Default(),
		clock:  clock.RealClock{},
	}
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Meter{
		logger: opts.logger.With("service", "meter"),
		clock:  opts.clock,
		lib:    lib,
		domain: domain,
		socket: socket,
	}
}

func (m *Meter) Name() string {
	return "meter"
}

// Init allocates the attributes and the measurement handle
func (m *Meter) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	attr, err := erd.NewAttributes(m.lib, m.domain, m.socket, erd.WithLogger(m.logger))
	if err != nil {
		return fmt.Errorf("failed to configure %s on socket %d: %w", m.domain, m.socket, err)
	}

	handle, err := erd.NewHandle(attr)
	if err != nil {
		attr.Destroy()
		return fmt.Errorf("failed to open %s on socket %d: %w", m.domain, m.socket, err)
	}

	m.attr, m.handle = attr, handle
	m.logger.Info("Measurement handle ready", "domain", m.domain, "socket", m.socket)
	return nil
}

// Shutdown destroys the handle before the attributes it was created from and
// closes the native library if it holds resources of its own
func (m *Meter) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handle.Destroy()
	m.attr.Destroy()
	m.handle, m.attr = nil, nil

	if c, ok := m.lib.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close native library: %w", err)
		}
	}
	return nil
}

// Domain returns the measured power domain
func (m *Meter) Domain() erd.Domain {
	return m.domain
}

// Socket returns the measured cpu socket
func (m *Meter) Socket() uint32 {
	return m.socket
}

func (m *Meter) ObtainReadings() (erd.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle.ObtainReadings()
}

func (m *Meter) Subtract(lhs, rhs erd.Reading) (erd.Difference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle.Subtract(lhs, rhs)
}

// Measure samples src twice, interval apart, and returns the difference
func Measure(ctx context.Context, clk clock.Clock, src Source, interval time.Duration) (erd.Difference, error) {
	start, err := src.ObtainReadings()
	if err != nil {
		return erd.Difference{}, err
	}

	select {
	case <-ctx.Done():
		return erd.Difference{}, ctx.Err()
	case <-clk.After(interval):
	}

	end, err := src.ObtainReadings()
	if err != nil {
		return erd.Difference{}, err
	}
	return src.Subtract(end, start)
}

// Measure samples the meter's handle interval apart
func (m *Meter) Measure(ctx context.Context, interval time.Duration) (erd.Difference, error) {
	return Measure(ctx, m.clock, m, interval)
}

// Joules converts d into joules and seconds
func Joules(d erd.Difference) (joules float64, elapsed time.Duration, err error) {
	energy, eunit := d.Energy()
	duration, tunit := d.Duration()

	joules, eerr := eunit.Joules(energy)
	elapsed, terr := tunit.Duration(duration)
	return joules, elapsed, errors.Join(eerr, terr)
}
