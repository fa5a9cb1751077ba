package schedule

import (
	"sync"
	"time"

	"github.com/dnldd/orb/shared"
)

// Clock is the single source of decision time.
type Clock interface {
	// Now returns the current time in IST.
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall clock time in IST.
func (SystemClock) Now() time.Time {
	return time.Now().In(shared.IST)
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	now    time.Time
	nowMtx sync.RWMutex
}

// NewManualClock initializes a manual clock at the provided time.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now.In(shared.IST)}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.nowMtx.RLock()
	defer c.nowMtx.RUnlock()
	return c.now
}

// Set moves the clock to the provided time.
func (c *ManualClock) Set(now time.Time) {
	c.nowMtx.Lock()
	c.now = now.In(shared.IST)
	c.nowMtx.Unlock()
}

// Advance moves the clock forward by the provided duration.
func (c *ManualClock) Advance(d time.Duration) {
	c.nowMtx.Lock()
	c.now = c.now.Add(d)
	c.nowMtx.Unlock()
}
