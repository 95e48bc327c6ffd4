// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package powercap implements erd.Native on top of the Linux powercap sysfs
// interface (intel-rapl zones).
package powercap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/procfs/sysfs"
	"k8s.io/utils/clock"

	"github.com/sustainable-computing-io/erd/internal/arena"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// maxCounterLen is the size of the buffer an energy_uj value is read into
const maxCounterLen = 24

type attributes struct {
	domain erd.Domain
	socket uint32
}

// reader is the native measurement handle: an open energy_uj counter of one zone
type reader struct {
	attr      attributes
	path      string
	sensor    *os.File
	maxEnergy uint64
}

// Library is the powercap backed native collaborator. Distinct attributes and
// handles may be used from different goroutines; a single handle may not.
type Library struct {
	fs     sysfs.FS
	logger *slog.Logger
	clock  clock.PassiveClock
	epoch  time.Time

	attrs   *arena.Arena[attributes]
	handles *arena.Arena[*reader]
}

var _ erd.Native = (*Library)(nil)

// New creates a Library reading zones from the configured sysfs mount point
func New(applyOpts ...OptionFn) (*Library, error) {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	fs, err := sysfs.NewFS(opts.sysfsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create sysfs filesystem: %w", err)
	}

	return &Library{
		fs:      fs,
		logger:  opts.logger.With("native", "powercap"),
		clock:   opts.clock,
		epoch:   opts.clock.Now(),
		attrs:   arena.New[attributes](),
		handles: arena.New[*reader](),
	}, nil
}

// Name returns the name of this native implementation
func (l *Library) Name() string {
	return "powercap"
}

// Allocated returns the number of attributes and handles not yet destroyed
func (l *Library) Allocated() (attrs, handles int) {
	return l.attrs.Len(), l.handles.Len()
}

// Close releases handles that were never destroyed
func (l *Library) Close() error {
	var errs []error
	for _, r := range l.handles.Drain() {
		l.logger.Warn("Closing handle that was not destroyed", "zone", r.path)
		if err := r.sensor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.attrs.Drain()
	return errors.Join(errs...)
}

func (l *Library) AttrCreate(ed *erd.ErrorDescriptor) (erd.AttrRef, erd.StatusCode) {
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

	r, err := l.openReader(a)
	if err != nil {
		l.logger.Debug("Failed to create handle", "domain", a.domain, "socket", a.socket, "error", err)
		ed.Fill(err.Error())
		return 0, statusFor(err)
	}

	l.logger.Info("Found zone", "zone", r.path, "domain", a.domain, "socket", a.socket)
	return erd.HandleRef(l.handles.Insert(r)), erd.StatusSuccess
}

func (l *Library) openReader(a attributes) (*reader, error) {
	zone, err := findZone(l.fs, a.domain, a.socket)
	if err != nil {
		return nil, err
	}

	sensor, err := os.Open(filepath.Join(zone.Path, "energy_uj"))
	if err != nil {
		return nil, systemError(err)
	}

	return &reader{
		attr:      a,
		path:      zone.Path,
		sensor:    sensor,
		maxEnergy: zone.MaxMicrojoules,
	}, nil
}

func (l *Library) HandleDestroy(handle erd.HandleRef) erd.StatusCode {
	if handle == 0 {
		return erd.StatusSuccess
	}
	r, ok := l.handles.Remove(uintptr(handle))
	if !ok {
		return erd.StatusInvalidArgument
	}
	if err := r.sensor.Close(); err != nil {
		l.logger.Warn("Error closing energy counter", "zone", r.path, "error", err)
		return erd.StatusSystemError
	}
	return erd.StatusSuccess
}

func (l *Library) ObtainReadings(handle erd.HandleRef, ed *erd.ErrorDescriptor) (erd.NativeReadings, erd.StatusCode) {
	r, ok := l.handles.Get(uintptr(handle))
	if !ok {
		ed.Fill("unknown handle")
		return erd.NativeReadings{}, erd.StatusInvalidArgument
	}

	energy, err := r.energy()
	if err != nil {
		l.logger.Debug("Error obtaining readings", "zone", r.path, "error", err)
		ed.Fill(err.Error())
		return erd.NativeReadings{}, statusFor(err)
	}

	return erd.NativeReadings{
		Time:   l.clock.Since(l.epoch).Nanoseconds(),
		Energy: energy,
		TUnit:  erd.Nanosecond,
		EUnit:  erd.Microjoule,
	}, erd.StatusSuccess
}

// SubtractReadings returns lhs - rhs. A counter smaller than the earlier one
// is taken as a single wrap around the zone's maximum energy range.
func (l *Library) SubtractReadings(handle erd.HandleRef, lhs, rhs erd.NativeReadings) (erd.NativeReadings, erd.StatusCode) {
	r, ok := l.handles.Get(uintptr(handle))
	if !ok {
		return erd.NativeReadings{}, erd.StatusInvalidArgument
	}
	lhs, ok = toCounterUnits(lhs)
	if !ok {
		return erd.NativeReadings{}, erd.StatusInvalidUnit
	}
	rhs, ok = toCounterUnits(rhs)
	if !ok {
		return erd.NativeReadings{}, erd.StatusInvalidUnit
	}

	energy := lhs.Energy - rhs.Energy
	if rhs.Energy > lhs.Energy {
		energy = r.maxEnergy + lhs.Energy - rhs.Energy
	}

	return erd.NativeReadings{
		Time:   lhs.Time - rhs.Time,
		Energy: energy,
		TUnit:  erd.Nanosecond,
		EUnit:  erd.Microjoule,
	}, erd.StatusSuccess
}

// toCounterUnits rescales a reading tagged in joules or seconds to the
// microjoule and nanosecond units the counters are kept in
func toCounterUnits(in erd.NativeReadings) (erd.NativeReadings, bool) {
	switch in.EUnit {
	case erd.Microjoule:
	case erd.Joule:
		in.Energy *= 1_000_000
		in.EUnit = erd.Microjoule
	default:
		return in, false
	}

	switch in.TUnit {
	case erd.Nanosecond:
	case erd.Second:
		in.Time *= int64(time.Second)
		in.TUnit = erd.Nanosecond
	default:
		return in, false
	}
	return in, true
}

// energy reads the current counter value in microjoules
func (r *reader) energy() (uint64, error) {
	var buf [maxCounterLen]byte
	n, err := r.sensor.ReadAt(buf[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, systemError(err)
	}
	if n == 0 {
		return 0, systemError(fmt.Errorf("empty energy counter %s", r.path))
	}

	value, err := strconv.ParseUint(strings.TrimSpace(string(buf[:n])), 10, 64)
	if err != nil {
		return 0, &statusError{status: erd.StatusGenericError, err: fmt.Errorf("invalid energy counter: %w", err)}
	}
	return value, nil
}
