// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"strconv"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// ReadingSource takes and subtracts readings of one domain
type ReadingSource interface {
	ObtainReadings() (erd.Reading, error)
	Subtract(lhs, rhs erd.Reading) (erd.Difference, error)
}

// EnergyCollector samples its source on every scrape and exports the energy
// consumed since the first scrape. The first scrape only records a baseline.
type EnergyCollector struct {
	source ReadingSource
	logger *slog.Logger
	labels []string // domain, socket

	mu       sync.Mutex
	baseline erd.Reading
	primed   bool
	joules   float64
	seconds  float64
	watts    float64

	joulesDesc  *prom.Desc
	secondsDesc *prom.Desc
	wattsDesc   *prom.Desc
	readErrors  *prom.CounterVec
}

var _ prom.Collector = (*EnergyCollector)(nil)

// NewEnergyCollector creates a collector for domain on socket reading from source
func NewEnergyCollector(source ReadingSource, domain erd.Domain, socket uint32, logger *slog.Logger) *EnergyCollector {
	labels := []string{"domain", "socket"}

	return &EnergyCollector{
		source: source,
		logger: logger.With("collector", "energy"),
		labels: []string{domain.String(), strconv.FormatUint(uint64(socket), 10)},

		joulesDesc: prom.NewDesc(
			prom.BuildFQName(erdNS, "", "energy_joules_total"),
			"Energy consumed by the power domain since the first scrape in joules",
			labels, nil),
		secondsDesc: prom.NewDesc(
			prom.BuildFQName(erdNS, "", "sample_duration_seconds_total"),
			"Time covered by the energy counter since the first scrape in seconds",
			labels, nil),
		wattsDesc: prom.NewDesc(
			prom.BuildFQName(erdNS, "", "power_watts"),
			"Average power of the domain between the last two scrapes in watts",
			labels, nil),
		readErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: erdNS,
			Name:      "read_errors_total",
			Help:      "Failed attempts to obtain or subtract readings by status",
		}, []string{"status"}),
	}
}

func (c *EnergyCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.joulesDesc
	ch <- c.secondsDesc
	ch <- c.wattsDesc
	c.readErrors.Describe(ch)
}

func (c *EnergyCollector) Collect(ch chan<- prom.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sample()

	ch <- prom.MustNewConstMetric(c.joulesDesc, prom.CounterValue, c.joules, c.labels...)
	ch <- prom.MustNewConstMetric(c.secondsDesc, prom.CounterValue, c.seconds, c.labels...)
	ch <- prom.MustNewConstMetric(c.wattsDesc, prom.GaugeValue, c.watts, c.labels...)
	c.readErrors.Collect(ch)
}

// sample accumulates the difference to the previous reading; must be called with mu held
func (c *EnergyCollector) sample() {
	current, err := c.source.ObtainReadings()
	if err != nil {
		c.failed("Failed to obtain readings", err)
		return
	}
	if !c.primed {
		c.baseline, c.primed = current, true
		return
	}

	diff, err := c.source.Subtract(current, c.baseline)
	if err != nil {
		c.failed("Failed to subtract readings", err)
		return
	}
	c.baseline = current

	energy, eunit := diff.Energy()
	joules, err := eunit.Joules(energy)
	if err != nil {
		c.failed("Unsupported energy unit", err)
		return
	}
	duration, tunit := diff.Duration()
	elapsed, err := tunit.Duration(duration)
	if err != nil {
		c.failed("Unsupported time unit", err)
		return
	}

	c.joules += joules
	c.seconds += elapsed.Seconds()
	if elapsed > 0 {
		c.watts = joules / elapsed.Seconds()
	}
}

func (c *EnergyCollector) failed(msg string, err error) {
	c.logger.Warn(msg, "error", err)
	c.readErrors.WithLabelValues(erd.StatusOf(err).String()).Inc()
}
