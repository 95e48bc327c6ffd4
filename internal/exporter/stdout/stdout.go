// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"k8s.io/utils/clock"

	"github.com/sustainable-computing-io/erd/internal/meter"
	"github.com/sustainable-computing-io/erd/internal/service"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

type (
	Initializer = service.Initializer
	Runner      = service.Runner
)

// Meter is the measured domain printed on every tick
type Meter interface {
	meter.Source
	Domain() erd.Domain
	Socket() uint32
}

// Exporter prints the power of a domain to stdout every interval
type Exporter struct {
	logger   *slog.Logger
	meter    Meter
	out      io.Writer
	clock    clock.WithTicker
	interval time.Duration

	previous erd.Reading
	primed   bool
	total    float64
}

var (
	_ Initializer = (*Exporter)(nil)
	_ Runner      = (*Exporter)(nil)
)

type Opts struct {
	logger   *slog.Logger
	out      io.Writer
	clock    clock.WithTicker
	interval time.Duration
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:   slog.Default(),
		out:      os.Stdout,
		clock:    clock.RealClock{},
		interval: 2 * time.Second,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithOutput(out io.Writer) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

func WithInterval(interval time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = interval
	}
}

func WithClock(c clock.WithTicker) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

func NewExporter(m Meter, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger:   opts.logger.With("service", "stdout"),
		meter:    m,
		out:      opts.out,
		clock:    opts.clock,
		interval: opts.interval,
	}
}

func (e *Exporter) Name() string {
	return "stdout"
}

func (e *Exporter) Init() error {
	if e.interval <= 0 {
		return fmt.Errorf("invalid stdout interval: %s", e.interval)
	}
	return nil
}

// Run prints one table per tick. The first tick only records the baseline.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			e.tick()
		case <-ctx.Done():
			e.logger.Info("Exiting ticker")
			return nil
		}
	}
}

func (e *Exporter) tick() {
	current, err := e.meter.ObtainReadings()
	if err != nil {
		e.logger.Warn("Failed to obtain readings", "error", err)
		return
	}
	if !e.primed {
		e.previous, e.primed = current, true
		return
	}

	diff, err := e.meter.Subtract(current, e.previous)
	if err != nil {
		e.logger.Warn("Failed to subtract readings", "error", err)
		return
	}
	e.previous = current

	joules, elapsed, err := meter.Joules(diff)
	if err != nil {
		e.logger.Warn("Unsupported units", "difference", diff.String(), "error", err)
		return
	}
	e.total += joules

	watts := 0.0
	if elapsed > 0 {
		watts = joules / elapsed.Seconds()
	}
	e.write(watts, joules)
}

func (e *Exporter) write(watts, joules float64) {
	table := tablewriter.NewWriter(e.out)
	table.Header("Domain", "Socket", "Power(W)", "Energy(J)", "Total(J)")
	if err := table.Append([]string{
		e.meter.Domain().String(),
		strconv.FormatUint(uint64(e.meter.Socket()), 10),
		strconv.FormatFloat(watts, 'f', 2, 64),
		strconv.FormatFloat(joules, 'f', 2, 64),
		strconv.FormatFloat(e.total, 'f', 2, 64),
	}); err != nil {
		e.logger.Error("Failed to build table", "error", err)
		return
	}
	if err := table.Render(); err != nil {
		e.logger.Error("Failed to write table", "error", err)
	}
}
