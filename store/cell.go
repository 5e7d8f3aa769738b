// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"sync/atomic"
)

// cell wraps one stored resource with a borrow counter.
//
// The counter is 0 when the cell is idle, +N while N shared borrows are live,
// and -1 while one exclusive borrow is live. Transitions that would leave
// those states fail instead of waiting: the dispatcher arranges accesses so
// that a failed transition always means a mis-declared access set.
type cell struct {
	borrows atomic.Int64

	// value holds a *T and never changes after the cell is created,
	// so the resource stays pinned for the cell's lifetime.
	value any
}

func newCell(value any) *cell {
	return &cell{value: value}
}

func (c *cell) borrowShared() bool {
	for {
		n := c.borrows.Load()
		if n < 0 {
			return false
		}
		if c.borrows.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *cell) borrowExclusive() bool {
	return c.borrows.CompareAndSwap(0, -1)
}

func (c *cell) releaseShared() {
	if c.borrows.Add(-1) < 0 {
		panic("store: released a shared borrow that was never taken")
	}
}

func (c *cell) releaseExclusive() {
	if !c.borrows.CompareAndSwap(-1, 0) {
		panic("store: released an exclusive borrow that was never taken")
	}
}

// idle reports whether no borrow is live. It is a point-in-time observation
// and only meaningful to callers that externally guarantee quiescence.
func (c *cell) idle() bool {
	return c.borrows.Load() == 0
}
