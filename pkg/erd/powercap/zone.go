// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package powercap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs/sysfs"
	"github.com/sustainable-computing-io/erd/pkg/erd"
)

const (
	zonePackage = "package"
	zoneCore    = "core"
	zoneUncore  = "uncore"
	zoneDRAM    = "dram"
)

// sysfs zone names of the sub-domains of a package
var subzoneDomains = map[string]erd.Domain{
	zoneCore:   erd.DomainCores,
	zoneUncore: erd.DomainUncore,
	zoneDRAM:   erd.DomainDRAM,
}

// statusError pairs a failure with the status reported to the caller
type statusError struct {
	status erd.StatusCode
	err    error
}

func (e *statusError) Error() string {
	return e.err.Error()
}

func (e *statusError) Unwrap() error {
	return e.err
}

func invalidArgument(format string, args ...any) error {
	return &statusError{status: erd.StatusInvalidArgument, err: fmt.Errorf(format, args...)}
}

func systemError(err error) error {
	return &statusError{status: erd.StatusSystemError, err: err}
}

// statusFor returns the status to report for err
func statusFor(err error) erd.StatusCode {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return erd.StatusGenericError
}

// isStandardRaplPath checks if a RAPL zone path is in the standard format
func isStandardRaplPath(path string) bool {
	return strings.Contains(path, "/intel-rapl:")
}

// countSockets returns the number of distinct physical packages
func countSockets(fs sysfs.FS) (uint32, error) {
	cpus, err := fs.CPUs()
	if err != nil {
		return 0, systemError(fmt.Errorf("failed to list cpus: %w", err))
	}

	packages := map[string]struct{}{}
	for _, cpu := range cpus {
		topology, err := cpu.Topology()
		if err != nil {
			return 0, systemError(fmt.Errorf("failed to read topology of cpu %s: %w", cpu.Number(), err))
		}
		packages[topology.PhysicalPackageID] = struct{}{}
	}
	return uint32(len(packages)), nil
}

// findZone returns the RAPL zone measuring domain on socket. Package zones are
// matched by the package number in their name, sub-zones by their name below
// the matching package directory.
func findZone(fs sysfs.FS, domain erd.Domain, socket uint32) (sysfs.RaplZone, error) {
	sockets, err := countSockets(fs)
	if err != nil {
		return sysfs.RaplZone{}, err
	}
	if socket >= sockets {
		return sysfs.RaplZone{}, invalidArgument("system has %d sockets but socket %d requested", sockets, socket)
	}

	zones, err := sysfs.GetRaplZones(fs)
	if err != nil {
		return sysfs.RaplZone{}, systemError(fmt.Errorf("failed to read rapl zones: %w", err))
	}

	var standard []sysfs.RaplZone
	for _, z := range zones {
		if isStandardRaplPath(z.Path) {
			standard = append(standard, z)
		}
	}

	for _, pkg := range standard {
		if pkg.Name != zonePackage || pkg.Index != int(socket) {
			continue
		}
		if domain == erd.DomainPackage {
			return pkg, nil
		}

		prefix := filepath.Base(pkg.Path) + ":"
		for _, z := range standard {
			if !strings.HasPrefix(filepath.Base(z.Path), prefix) {
				continue
			}
			if d, ok := subzoneDomains[z.Name]; ok && d == domain {
				return z, nil
			}
		}
		return sysfs.RaplZone{}, invalidArgument("no %s domain was found for socket %d", domain, socket)
	}

	return sysfs.RaplZone{}, invalidArgument("no matching package zone found for socket %d", socket)
}
