// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package nop implements erd.Native without any hardware. Every configuration
// is accepted and every reading reports zero energy.
//
// NOTE: not intended for measurements; it lets the daemon and tools run on
// hosts without RAPL.
package nop

import (
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"github.com/sustainable-computing-io/erd/internal/arena"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

type attributes struct {
	domain erd.Domain
	socket uint32
}

// Library is a native collaborator whose counters never advance
type Library struct {
	logger *slog.Logger
	clock  clock.PassiveClock
	epoch  time.Time

	attrs   *arena.Arena[attributes]
	handles *arena.Arena[attributes]
}

var _ erd.Native = (*Library)(nil)

type Opts struct {
	logger *slog.Logger
	clock  clock.PassiveClock
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Library
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock used to timestamp readings
func WithClock(c clock.PassiveClock) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

func New(applyOpts ...OptionFn) *Library {
	opts := Opts{
		logger: slog.Default(),
		clock:  clock.RealClock{},
	}
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Library{
		logger:  opts.logger.With("native", "nop"),
		clock:   opts.clock,
		epoch:   opts.clock.Now(),
		attrs:   arena.New[attributes](),
		handles: arena.New[attributes](),
	}
}

func (l *Library) Name() string {
	return "nop"
}

// Allocated returns the number of attributes and handles not yet destroyed
func (l *Library) Allocated() (attrs, handles int) {
	return l.attrs.Len(), l.handles.Len()
}

func (l *Library) AttrCreate(_ *erd.ErrorDescriptor) (erd.AttrRef, erd.StatusCode) {
	return erd.AttrRef(l.attrs.Insert(attributes{})), erd.StatusSuccess
}

func (l *Library) AttrSetDomain(attr erd.AttrRef, domain erd.Domain) erd.StatusCode {
	if !domain.Valid() {
		return erd.StatusInvalidArgument
	}
	if !l.attrs.Update(uintptr(attr), func(a *attributes) { a.domain = domain }) {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (l *Library) AttrSetSocket(attr erd.AttrRef, socket uint32) erd.StatusCode {
	if !l.attrs.Update(uintptr(attr), func(a *attributes) { a.socket = socket }) {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (l *Library) AttrDestroy(attr erd.AttrRef) erd.StatusCode {
	if attr == 0 {
		return erd.StatusSuccess
	}
	if _, ok := l.attrs.Remove(uintptr(attr)); !ok {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (l *Library) HandleCreate(attr erd.AttrRef, ed *erd.ErrorDescriptor) (erd.HandleRef, erd.StatusCode) {
	a, ok := l.attrs.Get(uintptr(attr))
	if !ok {
		ed.Fill("unknown attributes")
		return 0, erd.StatusInvalidArgument
	}
	l.logger.Debug("Handle created", "domain", a.domain, "socket", a.socket)
	return erd.HandleRef(l.handles.Insert(a)), erd.StatusSuccess
}

func (l *Library) HandleDestroy(handle erd.HandleRef) erd.StatusCode {
	if handle == 0 {
		return erd.StatusSuccess
	}
	if _, ok := l.handles.Remove(uintptr(handle)); !ok {
		return erd.StatusInvalidArgument
	}
	return erd.StatusSuccess
}

func (l *Library) ObtainReadings(handle erd.HandleRef, ed *erd.ErrorDescriptor) (erd.NativeReadings, erd.StatusCode) {
	if _, ok := l.handles.Get(uintptr(handle)); !ok {
		ed.Fill("unknown handle")
		return erd.NativeReadings{}, erd.StatusInvalidArgument
	}
	return erd.NativeReadings{
		Time:  l.clock.Since(l.epoch).Nanoseconds(),
		TUnit: erd.Nanosecond,
		EUnit: erd.Microjoule,
	}, erd.StatusSuccess
}

func (l *Library) SubtractReadings(handle erd.HandleRef, lhs, rhs erd.NativeReadings) (erd.NativeReadings, erd.StatusCode) {
	if _, ok := l.handles.Get(uintptr(handle)); !ok {
		return erd.NativeReadings{}, erd.StatusInvalidArgument
	}
	if lhs.TUnit != rhs.TUnit {
		return erd.NativeReadings{}, erd.StatusInvalidUnit
	}
	return erd.NativeReadings{
		Time:  lhs.Time - rhs.Time,
		TUnit: lhs.TUnit,
		EUnit: erd.Microjoule,
	}, erd.StatusSuccess
}
