// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"log/slog"
	"time"
)

type Opts struct {
	logger      *slog.Logger
	socketPath  string
	dialTimeout time.Duration
	dialTries   uint
	dialDelay   time.Duration
}

// DefaultOpts returns the default options
func DefaultOpts() Opts {
	return Opts{
		logger:      slog.Default(),
		socketPath:  SocketPath(""),
		dialTimeout: 5 * time.Second,
		dialTries:   3,
		dialDelay:   100 * time.Millisecond,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Server or Client
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithSocketPath sets the unix socket path; an empty path keeps the default
func WithSocketPath(path string) OptionFn {
	return func(o *Opts) {
		o.socketPath = SocketPath(path)
	}
}

// WithDialTimeout sets how long the Client waits for the daemon to accept
func WithDialTimeout(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.dialTimeout = d
	}
}

// WithDialRetry sets how often the Client tries to reach the daemon and the
// pause between tries; tries below 1 mean a single try
func WithDialRetry(tries uint, delay time.Duration) OptionFn {
	return func(o *Opts) {
		o.dialTries = max(tries, 1)
		o.dialDelay = delay
	}
}
