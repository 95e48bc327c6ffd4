// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import "bytes"

// DefaultErrorDescriptorSize is the capacity of descriptors created by this package
const DefaultErrorDescriptorSize = 128

// ErrorDescriptor is a caller-owned diagnostic buffer handed to the native side
// for the duration of a single call. It mirrors the native descriptor: a byte
// buffer plus a size which is the capacity on entry and the length of the
// written message on return.
type ErrorDescriptor struct {
	what []byte
	size uint64
}

// NewErrorDescriptor allocates a descriptor able to hold capacity bytes
// including the terminating NUL
func NewErrorDescriptor(capacity int) *ErrorDescriptor {
	if capacity < 0 {
		capacity = 0
	}
	return &ErrorDescriptor{
		what: make([]byte, capacity),
		size: uint64(capacity),
	}
}

// Reset restores the reported size to the capacity so the descriptor can be reused
func (ed *ErrorDescriptor) Reset() {
	clear(ed.what)
	ed.size = uint64(len(ed.what))
}

// Cap returns the capacity of the underlying buffer
func (ed *ErrorDescriptor) Cap() int {
	return len(ed.what)
}

// Size returns the size field: the capacity before a native write, the
// message length after one
func (ed *ErrorDescriptor) Size() uint64 {
	return ed.size
}

// Fill writes msg the way the native side does: at most size-1 bytes are
// copied, a NUL terminator follows and size becomes the copied length. A nil
// descriptor, a zero size or an empty message leave the descriptor untouched.
func (ed *ErrorDescriptor) Fill(msg string) {
	if ed == nil || ed.size == 0 || len(msg) == 0 {
		return
	}
	n := min(ed.size-1, uint64(len(msg)))
	if n == 0 {
		return
	}
	copy(ed.what, msg[:n])
	ed.what[n] = 0
	ed.size = n
}

// String returns the diagnostic text, bounded by both the reported size and
// the first NUL byte
func (ed *ErrorDescriptor) String() string {
	if ed == nil {
		return ""
	}
	end := min(ed.size, uint64(len(ed.what)))
	text := ed.what[:end]
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	return string(text)
}
