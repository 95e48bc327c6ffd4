// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import (
	"fmt"
	"strings"
	"time"
)

// Domain identifies the power rail being measured
type Domain int32

const (
	DomainPackage Domain = iota
	DomainUncore
	DomainCores
	DomainDRAM
)

var domainNames = []string{"package", "uncore", "cores", "dram"}

func (d Domain) String() string {
	if d.Valid() {
		return domainNames[d]
	}
	return fmt.Sprintf("domain(%d)", int32(d))
}

// Valid reports whether d is one of the known domains
func (d Domain) Valid() bool {
	return d >= DomainPackage && d <= DomainDRAM
}

// ParseDomain returns the Domain for its name; matching is case-insensitive
func ParseDomain(name string) (Domain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range domainNames {
		if n == name {
			return Domain(i), nil
		}
	}
	return 0, fmt.Errorf("unknown domain: %q", name)
}

// EnergyUnit tags every energy value
type EnergyUnit int32

const (
	Joule EnergyUnit = iota
	Microjoule
)

func (u EnergyUnit) String() string {
	switch u {
	case Joule:
		return "J"
	case Microjoule:
		return "uJ"
	default:
		return fmt.Sprintf("energy-unit(%d)", int32(u))
	}
}

// Valid reports whether u is a known unit
func (u EnergyUnit) Valid() bool {
	return u == Joule || u == Microjoule
}

// Joules converts v expressed in u to joules
func (u EnergyUnit) Joules(v uint64) (float64, error) {
	switch u {
	case Joule:
		return float64(v), nil
	case Microjoule:
		return float64(v) / 1e6, nil
	default:
		return 0, &Error{Op: "convert energy", Status: StatusInvalidUnit}
	}
}

// TimeUnit tags every time value
type TimeUnit int32

const (
	Second TimeUnit = iota
	Nanosecond
)

func (u TimeUnit) String() string {
	switch u {
	case Second:
		return "s"
	case Nanosecond:
		return "ns"
	default:
		return fmt.Sprintf("time-unit(%d)", int32(u))
	}
}

// Valid reports whether u is a known unit
func (u TimeUnit) Valid() bool {
	return u == Second || u == Nanosecond
}

// Duration converts v expressed in u to a time.Duration
func (u TimeUnit) Duration(v int64) (time.Duration, error) {
	switch u {
	case Second:
		return time.Duration(v) * time.Second, nil
	case Nanosecond:
		return time.Duration(v), nil
	default:
		return 0, &Error{Op: "convert time", Status: StatusInvalidUnit}
	}
}

// NativeReadings has the layout of the native readings struct. For a sample
// Time is a timestamp; for a difference it is a duration.
type NativeReadings struct {
	Time   int64
	Energy uint64
	TUnit  TimeUnit
	EUnit  EnergyUnit
}

// Reading is one sample of the cumulative energy and time counters
type Reading struct {
	native NativeReadings
}

// ReadingFromNative rebuilds a Reading from its native form. It exists for
// transports that carry samples across process boundaries.
func ReadingFromNative(n NativeReadings) Reading {
	return Reading{native: n}
}

// Energy returns the cumulative energy counter and its unit
func (r Reading) Energy() (uint64, EnergyUnit) {
	return r.native.Energy, r.native.EUnit
}

// Timestamp returns the sample time and its unit
func (r Reading) Timestamp() (int64, TimeUnit) {
	return r.native.Time, r.native.TUnit
}

// Native returns the native form of the reading
func (r Reading) Native() NativeReadings {
	return r.native
}

func (r Reading) String() string {
	return fmt.Sprintf("reading{time: %d%s, energy: %d%s}", r.native.Time, r.native.TUnit, r.native.Energy, r.native.EUnit)
}

// Difference is the elapsed time and consumed energy between two readings
type Difference struct {
	native NativeReadings
}

// DifferenceFromNative rebuilds a Difference from its native form
func DifferenceFromNative(n NativeReadings) Difference {
	return Difference{native: n}
}

// Energy returns the consumed energy and its unit
func (d Difference) Energy() (uint64, EnergyUnit) {
	return d.native.Energy, d.native.EUnit
}

// Duration returns the elapsed time and its unit
func (d Difference) Duration() (int64, TimeUnit) {
	return d.native.Time, d.native.TUnit
}

// Native returns the native form of the difference
func (d Difference) Native() NativeReadings {
	return d.native
}

func (d Difference) String() string {
	return fmt.Sprintf("difference{duration: %d%s, energy: %d%s}", d.native.Time, d.native.TUnit, d.native.Energy, d.native.EUnit)
}
