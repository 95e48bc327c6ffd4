// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package arena hands out opaque numeric references for objects owned by a
// native collaborator. Reference 0 is never issued, so it can stand for "not
// allocated".
package arena

import (
	"sync"
)

type Arena[T any] struct {
	mu    sync.Mutex
	next  uintptr
	items map[uintptr]T
}

func New[T any]() *Arena[T] {
	return &Arena[T]{
		items: make(map[uintptr]T),
	}
}

// Insert stores v and returns its reference
func (a *Arena[T]) Insert(v T) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.next++
	a.items[a.next] = v
	return a.next
}

// Get returns the object stored under ref
func (a *Arena[T]) Get(ref uintptr) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.items[ref]
	return v, ok
}

// Update applies fn to the object stored under ref while holding the lock
func (a *Arena[T]) Update(ref uintptr, fn func(*T)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.items[ref]
	if !ok {
		return false
	}
	fn(&v)
	a.items[ref] = v
	return true
}

// Remove deletes ref and returns the object it referred to
func (a *Arena[T]) Remove(ref uintptr) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.items[ref]
	if ok {
		delete(a.items, ref)
	}
	return v, ok
}

// Drain removes and returns every object still stored
func (a *Arena[T]) Drain() []T {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := make([]T, 0, len(a.items))
	for ref, v := range a.items {
		items = append(items, v)
		delete(a.items, ref)
	}
	return items
}

// Len returns the number of live objects
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}
