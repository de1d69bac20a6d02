// Package identity provides the shared primitives every other ORCA
// component builds on: monotonic event ids, trace ids, the envelope
// wire type, and a swappable clock.
//
// These are deliberately boring. Nothing here owns state that needs to
// survive a restart except the id counter, and that is reseeded by WAL
// replay (see internal/orchestrator).
package identity

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time in milliseconds since the Unix epoch.
// Production uses WallClock; replay and tests use a virtual clock so
// that ts_ms values are reproducible.
//
// The package keeps no global clock: components take a Clock by
// dependency injection (orchestrator.Config.Clock defaults to
// WallClock).
type Clock interface {
	NowMS() int64
}

// WallClock is the production Clock backed by time.Now.
type WallClock struct{}

// NowMS returns the current wall-clock time in milliseconds.
func (WallClock) NowMS() int64 {
	return time.Now().UnixMilli()
}

// VirtualClock is a manually-advanced Clock for deterministic replay and
// tests. Zero value starts at epoch 0; advance it with Set or Advance.
type VirtualClock struct {
	ms atomic.Int64
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(startMS int64) *VirtualClock {
	vc := &VirtualClock{}
	vc.ms.Store(startMS)
	return vc
}

// NowMS returns the clock's current value.
func (c *VirtualClock) NowMS() int64 {
	return c.ms.Load()
}

// Set pins the clock to an exact value.
func (c *VirtualClock) Set(ms int64) {
	c.ms.Store(ms)
}

// Advance moves the clock forward by the given duration.
func (c *VirtualClock) Advance(d time.Duration) {
	c.ms.Add(d.Milliseconds())
}
