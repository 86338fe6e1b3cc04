// SPDX-License-Identifier: MIT

// Package ratelimit coalesces bursts of media faults so a flapping primitive
// triggers one response per interval instead of an error storm.
package ratelimit

import (
	"sync"
	"time"

	"github.com/ManuGH/radiosync/internal/clock"
	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum time between two responses to the same fault key.
const DefaultMinInterval = 2 * time.Second

// Coalescer admits at most one fault response per key per interval.
type Coalescer struct {
	mu       sync.Mutex
	interval time.Duration
	clock    clock.Clock
	perKey   map[string]*rate.Limiter
}

// NewCoalescer creates a coalescer; non-positive intervals use DefaultMinInterval.
func NewCoalescer(interval time.Duration, clk clock.Clock) *Coalescer {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Coalescer{interval: interval, clock: clk, perKey: make(map[string]*rate.Limiter)}
}

// Allow reports whether a response to key may run now.
func (c *Coalescer) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.perKey[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.interval), 1)
		c.perKey[key] = l
	}
	return l.AllowN(c.clock.Now(), 1)
}

// SetInterval changes the interval; existing keys start over.
func (c *Coalescer) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = interval
	c.perKey = make(map[string]*rate.Limiter)
}

// Reset forgets all keys.
func (c *Coalescer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perKey = make(map[string]*rate.Limiter)
}
