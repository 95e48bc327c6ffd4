// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import (
	"errors"
	"runtime"
)

var errNilNative = errors.New("native library is nil")

// Attributes is an owned, fully configured native attributes object: the
// measurement target made of a power domain and a socket index. It is
// immutable once created and must be destroyed exactly once, after every
// Handle created from it.
//
// Attributes are not safe for concurrent use.
type Attributes struct {
	lib    Native
	domain Domain
	socket uint32
	opts   Opts
	res    *resource
}

// NewAttributes allocates a native attributes object and applies domain and
// socket, in that order. If a setter fails the partially configured object is
// destroyed before the error is returned. Calling Destroy on the returned
// value is always safe, including when err is not nil.
func NewAttributes(lib Native, domain Domain, socket uint32, applyOpts ...OptionFn) (*Attributes, error) {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}
	if lib == nil {
		return nil, &Error{Op: "create attributes", Status: StatusInvalidArgument, Err: errNilNative}
	}

	ed := NewErrorDescriptor(opts.descriptorSize)
	ref, status := lib.AttrCreate(ed)
	if !status.OK() {
		return nil, newError("create attributes", status, ed)
	}

	res := newResource("attributes", uintptr(ref), func(r uintptr) StatusCode {
		return lib.AttrDestroy(AttrRef(r))
	}, opts.logger)

	if status := lib.AttrSetDomain(ref, domain); !status.OK() {
		res.release()
		return nil, newError("set domain", status, nil)
	}
	if status := lib.AttrSetSocket(ref, socket); !status.OK() {
		res.release()
		return nil, newError("set socket", status, nil)
	}

	a := &Attributes{
		lib:    lib,
		domain: domain,
		socket: socket,
		opts:   opts,
		res:    res,
	}
	runtime.SetFinalizer(a, (*Attributes).finalize)
	return a, nil
}

// Domain returns the configured power domain
func (a *Attributes) Domain() Domain {
	return a.domain
}

// Socket returns the configured socket index
func (a *Attributes) Socket() uint32 {
	return a.socket
}

// Destroyed reports whether the native object has been released
func (a *Attributes) Destroyed() bool {
	return a == nil || !a.res.alive()
}

// Destroy releases the native object. Only the first call reaches the native
// side; later calls, calls on a nil or zero Attributes are no-ops.
func (a *Attributes) Destroy() {
	if a == nil || a.res == nil {
		return
	}
	runtime.SetFinalizer(a, nil)
	a.res.release()
}

func (a *Attributes) finalize() {
	a.res.release()
}

func (a *Attributes) ref() AttrRef {
	return AttrRef(a.res.ref)
}
