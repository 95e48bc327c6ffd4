// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

// AttrRef is an opaque reference to a native attributes object. The zero
// value never refers to an allocated object.
type AttrRef uintptr

// HandleRef is an opaque reference to a native measurement handle. The zero
// value never refers to an allocated object.
type HandleRef uintptr

// Native is the call contract of the energy measurement facility. Every
// method is a single synchronous call; implementations must accept a nil
// descriptor and must treat destroying a zero reference as a successful no-op.
type Native interface {
	AttrCreate(ed *ErrorDescriptor) (AttrRef, StatusCode)
	AttrSetDomain(attr AttrRef, domain Domain) StatusCode
	AttrSetSocket(attr AttrRef, socket uint32) StatusCode
	AttrDestroy(attr AttrRef) StatusCode

	HandleCreate(attr AttrRef, ed *ErrorDescriptor) (HandleRef, StatusCode)
	HandleDestroy(handle HandleRef) StatusCode

	ObtainReadings(handle HandleRef, ed *ErrorDescriptor) (NativeReadings, StatusCode)
	SubtractReadings(handle HandleRef, lhs, rhs NativeReadings) (NativeReadings, StatusCode)
}
