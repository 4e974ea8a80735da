// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package hlc implements a hybrid logical clock. Timestamps produced by a
// single Clock are strictly increasing even when the physical clock stalls
// or jumps backwards.
package hlc

import (
	"time"

	"github.com/cockroachdb/metacat/pkg/util/syncutil"
)

// WallClock is the physical time source of a Clock.
type WallClock interface {
	// Now returns the current wall time in nanoseconds since the unix epoch.
	Now() int64
}

type systemClock struct{}

func (systemClock) Now() int64 { return time.Now().UnixNano() }

// ManualClock is a WallClock whose time only moves when told to. It is
// meant for tests.
type ManualClock struct {
	mu struct {
		syncutil.Mutex
		nanos int64
	}
}

// NewManualClock returns a ManualClock initialized to nanos.
func NewManualClock(nanos int64) *ManualClock {
	m := &ManualClock{}
	m.mu.nanos = nanos
	return m
}

// Now implements WallClock.
func (m *ManualClock) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.nanos
}

// Increment advances the clock by nanos.
func (m *ManualClock) Increment(nanos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.nanos += nanos
}

// Set sets the clock to nanos.
func (m *ManualClock) Set(nanos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.nanos = nanos
}

// Clock is a hybrid logical clock.
type Clock struct {
	wall WallClock

	mu struct {
		syncutil.Mutex
		ts Timestamp
	}
}

// NewClock returns a Clock backed by wall.
func NewClock(wall WallClock) *Clock {
	return &Clock{wall: wall}
}

// NewSystemClock returns a Clock backed by the system's wall time.
func NewSystemClock() *Clock {
	return NewClock(systemClock{})
}

// Now returns a timestamp strictly greater than any previously returned by
// this clock or passed to Update.
func (c *Clock) Now() Timestamp {
	physical := c.wall.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.ts.WallTime >= physical {
		c.mu.ts.Logical++
	} else {
		c.mu.ts = Timestamp{WallTime: physical}
	}
	return c.mu.ts
}

// Update ratchets the clock forward to at least ts. Timestamps assigned by
// other parties (e.g. explicit client timestamps) are fed back here so the
// clock never hands out a timestamp at or below a committed one.
func (c *Clock) Update(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.ts.Forward(ts)
}
