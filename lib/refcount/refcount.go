// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package refcount implements the shared-ownership lifetime contract
// used by Cmesh and Ghost (spec.md §5): both are created with a
// refcount of 1, Ref'd and Unref'd by collaborators, and torn down the
// moment the count reaches zero.
package refcount

import "sync/atomic"

// Counter is a manual reference count. The zero value is not usable;
// construct one with New.
type Counter struct {
	n int32
}

// New returns a Counter with an initial count of 1, matching the
// "created with refcount >= 1" lifecycle in spec.md §3/§5.
func New() *Counter {
	return &Counter{n: 1}
}

// Ref increments the count. It is a contract violation to call Ref on
// a Counter that has already reached zero.
func (c *Counter) Ref() {
	if atomic.AddInt32(&c.n, 1) <= 1 {
		panic("refcount.Counter.Ref: called after count reached zero")
	}
}

// Unref decrements the count and runs teardown exactly once, the
// instant the count reaches zero. It is safe to call Unref
// concurrently with Ref, but spec.md §5 notes that cmesh/ghost
// instances themselves are single-threaded per rank; this just avoids
// surprises if a caller shares a Counter across goroutines.
func (c *Counter) Unref(teardown func()) {
	if atomic.AddInt32(&c.n, -1) == 0 {
		teardown()
	}
}

// Count returns the current count, for tests and diagnostics.
func (c *Counter) Count() int {
	return int(atomic.LoadInt32(&c.n))
}
