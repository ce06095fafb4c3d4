// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stroke

import (
	"sync"
	"sync/atomic"
)

// Cell shares the current Params between any number of input sources and the
// control loop. Writers are serialized; the reader never blocks and always
// sees the newest complete snapshot. Intermediate values are simply replaced.
type Cell struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Params]
	ack     atomic.Bool
}

// NewCell creates a cell holding initial
func NewCell(initial Params) *Cell {
	c := &Cell{}
	c.current.Store(&initial)
	return c
}

// Load returns the latest snapshot
func (c *Cell) Load() Params {
	return *c.current.Load()
}

// Store replaces the snapshot
func (c *Cell) Store(p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(&p)
}

// Update applies fn to a copy of the current snapshot and publishes the
// result. Concurrent updates do not lose each other's changes.
func (c *Cell) Update(fn func(p *Params)) Params {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *c.current.Load()
	fn(&next)
	c.current.Store(&next)
	return next
}

// RequestAcknowledge asks the control loop to acknowledge the next drive error
func (c *Cell) RequestAcknowledge() {
	c.ack.Store(true)
}

// TakeAcknowledge returns and clears a pending acknowledge request
func (c *Cell) TakeAcknowledge() bool {
	return c.ack.Swap(false)
}
