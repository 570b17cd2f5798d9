// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package control

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDebounce is the quiet period before an edit is sent
const DefaultDebounce = 300 * time.Millisecond

// Coalescer runs fn once after triggers stop arriving for delay
type Coalescer struct {
	clock clockwork.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	pending bool
	stopped bool
}

// NewCoalescer creates a coalescer. A nil clock uses the real clock.
func NewCoalescer(clock clockwork.Clock, delay time.Duration, fn func()) *Coalescer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coalescer{
		clock: clock,
		delay: delay,
		fn:    fn,
	}
}

// Trigger (re)starts the quiet period
func (c *Coalescer) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	c.stopTimer()
	c.gen++
	gen := c.gen
	c.pending = true
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(gen) })
}

// Pending reports whether a run is scheduled
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Flush runs fn now if a run was scheduled
func (c *Coalescer) Flush() bool {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return false
	}
	c.cancelLocked()
	c.mu.Unlock()

	c.fn()
	return true
}

// Cancel drops a scheduled run
func (c *Coalescer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Stop cancels any scheduled run and ignores later triggers
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.stopped = true
}

func (c *Coalescer) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.timer = nil
	c.mu.Unlock()

	c.fn()
}

func (c *Coalescer) cancelLocked() {
	c.stopTimer()
	c.gen++
	c.pending = false
}

func (c *Coalescer) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
