// Package clock implements the simulated clock described in spec §4.8: a
// monotonic wrapper over a base (wall) clock with a versioned
// {base_from, epoch, rate_of_time} triple, adjustable at runtime so chrono
// timeouts can be driven deterministically under test.
//
// Grounded on the atomic tick-offset pattern in the teacher's
// eventloop.Loop (tickAnchor/tickElapsedTime), generalized from a single
// atomic offset to a small ring of versions so readers that captured an
// older index still observe a stable, internally-consistent snapshot even
// while a writer is publishing a new version.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// versionRingSize is sized to comfortably exceed the number of adjustments that can
// be in flight at once; spec requires N >= 3.
const versionRingSize = 8

// version is one immutable snapshot of the clock's affine transform:
// simulated_now = epoch + (base_clock_now - base_from) * rate_of_time.
type version struct {
	baseFrom  time.Time
	epoch     time.Time
	rateOfTime float64
}

// Clock is a user-adjustable monotonic clock. The zero value is not usable;
// construct with New.
type Clock struct {
	now func() time.Time // base clock, overridable for tests

	mu      sync.Mutex // serializes writers (adjust_clock/set_clock)
	ring    [versionRingSize]version
	current atomic.Uint64 // index of the current version, monotonically increasing
}

// New creates a Clock whose simulated time initially tracks the real clock
// at rate 1.
func New() *Clock {
	return NewWithBaseClock(time.Now)
}

// NewWithBaseClock is New, but lets tests substitute the base clock.
func NewWithBaseClock(now func() time.Time) *Clock {
	c := &Clock{now: now}
	base := now()
	c.ring[0] = version{baseFrom: base, epoch: base, rateOfTime: 1}
	return c
}

func (c *Clock) read(idx uint64) version {
	return c.ring[idx%versionRingSize]
}

// Now returns the current simulated time. Readers are wait-free: a single
// atomic load selects the version, which is never mutated in place once
// published (writers always write to the next ring slot before publishing
// the index).
func (c *Clock) Now() time.Time {
	idx := c.current.Load()
	v := c.read(idx)
	elapsed := c.now().Sub(v.baseFrom)
	return v.epoch.Add(time.Duration(float64(elapsed) * v.rateOfTime))
}

// RateOfTime returns the currently configured rate of simulated time
// relative to real time (1 = real time, 0 = paused).
func (c *Clock) RateOfTime() float64 {
	return c.read(c.current.Load()).rateOfTime
}

// AdjustClock shifts simulated time forward by delta (may be negative) and
// sets a new rate of time, effective immediately.
func (c *Clock) AdjustClock(delta time.Duration, rateOfTime float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newEpoch := c.Now().Add(delta)
	c.publish(newEpoch, rateOfTime)
}

// SetClock pins simulated time to t and sets a new rate of time.
func (c *Clock) SetClock(t time.Time, rateOfTime float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.publish(t, rateOfTime)
}

// publish must be called with mu held.
func (c *Clock) publish(epoch time.Time, rateOfTime float64) {
	cur := c.current.Load()
	next := cur + 1
	c.ring[next%versionRingSize] = version{
		baseFrom:   c.now(),
		epoch:      epoch,
		rateOfTime: rateOfTime,
	}
	c.current.Store(next)
}

// RealDuration converts a duration of simulated time into the real-time
// duration a sleeper should wait for, given the current rate of time. A
// zero or negative rate of time means "never fires on its own" and is
// reported as the largest representable duration so callers block until
// explicitly woken rather than busy-spinning.
func (c *Clock) RealDuration(simulated time.Duration) time.Duration {
	rate := c.RateOfTime()
	if rate <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(float64(simulated) / rate)
}
