// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import "log/slog"

// Opts holds the options shared by Attributes and Handle
type Opts struct {
	logger         *slog.Logger
	descriptorSize int
}

// DefaultOpts returns the default options
func DefaultOpts() Opts {
	return Opts{
		logger:         slog.Default(),
		descriptorSize: DefaultErrorDescriptorSize,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger that receives teardown diagnostics
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithDescriptorSize sets the capacity of the error descriptors passed to
// the native side
func WithDescriptorSize(size int) OptionFn {
	return func(o *Opts) {
		o.descriptorSize = size
	}
}
