// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import (
	"log/slog"
	"sync/atomic"
)

// resource is the cell owning one native reference. Explicit Destroy and the
// finalizer of the owning wrapper both go through release, which calls the
// native destroy at most once. The cell is created only after a successful
// allocation, so the reference it holds is never stale.
type resource struct {
	kind      string
	ref       uintptr
	destroyed atomic.Bool
	destroy   func(ref uintptr) StatusCode
	logger    *slog.Logger
}

func newResource(kind string, ref uintptr, destroy func(uintptr) StatusCode, logger *slog.Logger) *resource {
	return &resource{
		kind:    kind,
		ref:     ref,
		destroy: destroy,
		logger:  logger,
	}
}

// alive reports whether the native reference may still be used
func (r *resource) alive() bool {
	return r != nil && !r.destroyed.Load()
}

// release destroys the native reference exactly once. Failures are logged and
// never returned: there is nobody to hand them to during teardown.
func (r *resource) release() {
	if r == nil || !r.destroyed.CompareAndSwap(false, true) {
		return
	}
	if r.ref == 0 {
		return
	}
	if status := r.destroy(r.ref); !status.OK() {
		r.logger.Warn("Error destroying native resource", "kind", r.kind, "status", status)
		return
	}
	r.logger.Debug("Native resource destroyed", "kind", r.kind)
}
