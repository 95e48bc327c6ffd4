// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package service defines the lifecycle erd's daemon components follow. Init
// brings services up in slice order; Run drives every Runner until the first
// one returns. Teardown happens in two groups: each Runner is shut down as the
// run group unwinds, then the passive services (those that only implement
// Shutdowner, such as the meter owning the native handle) are shut down in
// reverse order, so a handle is never released while a runner may still read
// through it.
package service

import "context"

// Service is anything with a name in the daemon's service list
type Service interface {
	Name() string
}

// Initializer is a service with setup that may fail; Init is called once,
// before any Run
type Initializer interface {
	Service
	Init() error
}

// Runner is a service with a blocking loop. Run returns when ctx is done or
// the service fails; a returning Runner stops all the others.
type Runner interface {
	Service
	Run(ctx context.Context) error
}

// Shutdowner is a service holding resources released on Shutdown
type Shutdowner interface {
	Service
	Shutdown() error
}
