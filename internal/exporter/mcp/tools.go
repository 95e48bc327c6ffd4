// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sustainable-computing-io/erd/internal/meter"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// ObtainReadingsParams defines parameters for obtain_readings tool
type ObtainReadingsParams struct{}

// MeasureParams defines parameters for measure tool
type MeasureParams struct {
	IntervalMS int `json:"interval_ms,omitempty" jsonschema:"Time between the two readings in milliseconds (default: 1000)"`
}

const defaultMeasureInterval = time.Second

func (s *Server) handleObtainReadings(ctx context.Context, cc *mcp.ServerSession, params *mcp.CallToolParamsFor[ObtainReadingsParams]) (*mcp.CallToolResultFor[any], error) {
	s.logger.Debug("Handling obtain_readings request")

	r, err := s.meter.ObtainReadings()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain readings: %w", err)
	}

	return textResult(s.formatReading(r)), nil
}

func (s *Server) handleMeasure(ctx context.Context, cc *mcp.ServerSession, params *mcp.CallToolParamsFor[MeasureParams]) (*mcp.CallToolResultFor[any], error) {
	interval := defaultMeasureInterval
	if ms := params.Arguments.IntervalMS; ms != 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	if interval <= 0 || interval > s.maxInterval {
		return nil, fmt.Errorf("interval must be between 1ms and %s: got %s", s.maxInterval, interval)
	}
	s.logger.Debug("Handling measure request", "interval", interval)

	diff, err := s.meter.Measure(ctx, interval)
	if err != nil {
		return nil, fmt.Errorf("measurement failed: %w", err)
	}
	joules, elapsed, err := meter.Joules(diff)
	if err != nil {
		return nil, fmt.Errorf("measurement failed: %w", err)
	}

	return textResult(s.formatMeasurement(joules, elapsed)), nil
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (s *Server) formatReading(r erd.Reading) string {
	ts, tunit := r.Timestamp()
	energy, eunit := r.Energy()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Domain: %s (socket %d)\n", s.meter.Domain(), s.meter.Socket()))
	sb.WriteString(fmt.Sprintf("Timestamp: %d%s\n", ts, tunit))
	sb.WriteString(fmt.Sprintf("Energy: %d%s\n", energy, eunit))
	return sb.String()
}

func (s *Server) formatMeasurement(joules float64, elapsed time.Duration) string {
	watts := 0.0
	if elapsed > 0 {
		watts = joules / elapsed.Seconds()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Domain: %s (socket %d)\n", s.meter.Domain(), s.meter.Socket()))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", elapsed))
	sb.WriteString(fmt.Sprintf("Energy: %.6fJ\n", joules))
	sb.WriteString(fmt.Sprintf("Power: %.3fW\n", watts))
	return sb.String()
}
