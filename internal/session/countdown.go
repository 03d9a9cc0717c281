package session

import (
	"context"
	"sync/atomic"
	"time"
)

// Countdown derives remaining time from a fixed end time and the wall clock.
// Because remaining is re-derived on every check rather than decremented, a
// suspended/resumed host can never produce negative values, and the expiry
// latch guarantees the expiry callback fires exactly once no matter how
// often the countdown is polled.
type Countdown struct {
	endsAt   time.Time
	interval time.Duration
	now      func() time.Time
	expired  atomic.Bool
}

// NewCountdown creates a countdown toward endsAt, ticking every interval.
func NewCountdown(endsAt time.Time, interval time.Duration, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{endsAt: endsAt, interval: interval, now: now}
}

// Remaining returns whole seconds until the end time, never negative.
func (c *Countdown) Remaining() int {
	d := c.endsAt.Sub(c.now())
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Expire attempts to claim the one-shot expiry. Returns true for exactly one
// caller, and only once the end time has actually passed. The displayed
// remaining value floors to whole seconds, so the guard checks the deadline
// itself rather than Remaining.
func (c *Countdown) Expire() bool {
	if c.endsAt.After(c.now()) {
		return false
	}
	return c.expired.CompareAndSwap(false, true)
}

// Expired reports whether the expiry latch has been claimed.
func (c *Countdown) Expired() bool {
	return c.expired.Load()
}

// Run ticks until the context is cancelled or expiry fires. onTick receives
// the remaining seconds each period; onExpiry runs exactly once. Both
// callbacks execute on the countdown goroutine and must not block, so slow
// durable writes elsewhere never stall timer accuracy.
func (c *Countdown) Run(ctx context.Context, onTick func(remaining int), onExpiry func()) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onTick(c.Remaining())
			if c.Expire() {
				onExpiry()
				return
			}
		}
	}
}
