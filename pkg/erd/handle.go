// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import "runtime"

// Handle is an owned native measurement session bound to Attributes. The
// Attributes must outlive the Handle; this is a precondition of the caller and
// is not checked once the Handle exists.
//
// A Handle is not safe for concurrent use; callers sharing one must provide
// their own mutual exclusion.
type Handle struct {
	lib  Native
	attr *Attributes
	res  *resource
}

// NewHandle allocates a native measurement handle for attr. On failure the
// error carries the diagnostic text reported by the native side. Calling
// Destroy on the returned value is always safe.
func NewHandle(attr *Attributes, applyOpts ...OptionFn) (*Handle, error) {
	if attr.Destroyed() {
		return nil, destroyedError("create handle", StatusInvalidArgument)
	}
	opts := attr.opts
	for _, apply := range applyOpts {
		apply(&opts)
	}

	lib := attr.lib
	ed := NewErrorDescriptor(opts.descriptorSize)
	ref, status := lib.HandleCreate(attr.ref(), ed)
	runtime.KeepAlive(attr)
	if !status.OK() {
		return nil, newError("create handle", status, ed)
	}

	h := &Handle{
		lib:  lib,
		attr: attr,
		res: newResource("handle", uintptr(ref), func(r uintptr) StatusCode {
			return lib.HandleDestroy(HandleRef(r))
		}, opts.logger),
	}
	// h references attr, so implicit teardown finalizes the handle first
	runtime.SetFinalizer(h, (*Handle).finalize)
	return h, nil
}

// Attributes returns the attributes the handle was created from
func (h *Handle) Attributes() *Attributes {
	return h.attr
}

// Destroyed reports whether the native handle has been released
func (h *Handle) Destroyed() bool {
	return h == nil || !h.res.alive()
}

// ObtainReadings takes one sample of the energy and time counters. No error
// descriptor is passed to the native side, so failures carry only a status.
func (h *Handle) ObtainReadings() (Reading, error) {
	if h.Destroyed() {
		return Reading{}, destroyedError("obtain readings", StatusInvalidStatus)
	}
	native, status := h.lib.ObtainReadings(h.ref(), nil)
	runtime.KeepAlive(h)
	if !status.OK() {
		return Reading{}, newError("obtain readings", status, nil)
	}
	return Reading{native: native}, nil
}

// Subtract returns lhs - rhs as computed by the native side. The caller
// decides which reading is the later one; no ordering check is made and no
// arithmetic is done here.
func (h *Handle) Subtract(lhs, rhs Reading) (Difference, error) {
	if h.Destroyed() {
		return Difference{}, destroyedError("subtract readings", StatusInvalidStatus)
	}
	native, status := h.lib.SubtractReadings(h.ref(), lhs.native, rhs.native)
	runtime.KeepAlive(h)
	if !status.OK() {
		return Difference{}, newError("subtract readings", status, nil)
	}
	return Difference{native: native}, nil
}

// Destroy releases the native handle. It must be called before the bound
// Attributes are destroyed. Only the first call reaches the native side.
func (h *Handle) Destroy() {
	if h == nil || h.res == nil {
		return
	}
	runtime.SetFinalizer(h, nil)
	h.res.release()
}

func (h *Handle) finalize() {
	h.res.release()
}

func (h *Handle) ref() HandleRef {
	return HandleRef(h.res.ref)
}
