// Package clock supplies the ledger timestamp stamped on records.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current ledger timestamp in seconds since the Unix epoch.
type Clock interface {
	Timestamp() uint64
}

// Func adapts a plain function to Clock.
type Func func() uint64

// Timestamp implements Clock.
func (f Func) Timestamp() uint64 { return f() }

// System reads wall-clock time.
type System struct{}

// Timestamp implements Clock.
func (System) Timestamp() uint64 { return uint64(time.Now().Unix()) }

// Manual is a settable clock for tests and replay.
type Manual struct {
	mu sync.Mutex
	ts uint64
}

// NewManual returns a Manual clock starting at ts.
func NewManual(ts uint64) *Manual { return &Manual{ts: ts} }

// Timestamp implements Clock.
func (m *Manual) Timestamp() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ts
}

// Set moves the clock to ts.
func (m *Manual) Set(ts uint64) {
	m.mu.Lock()
	m.ts = ts
	m.mu.Unlock()
}

// Advance moves the clock forward by d, rounded down to whole seconds.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.ts += uint64(d / time.Second)
	m.mu.Unlock()
}
