package loop

import "time"

// clock measures the time between ticks and keeps a rolling average over
// the last len(samples) ticks.
type clock struct {
	last    time.Time
	samples []time.Duration
	next    int
	filled  int
	sum     time.Duration
}

func newClock(window int) *clock {
	return &clock{samples: make([]time.Duration, window)}
}

// tick records a tick and returns the time since the previous one.
// The first tick after reset returns zero.
func (c *clock) tick(now time.Time) time.Duration {
	if c.last.IsZero() {
		c.last = now
		return 0
	}
	dt := now.Sub(c.last)
	c.last = now

	c.sum += dt - c.samples[c.next]
	c.samples[c.next] = dt
	c.next = (c.next + 1) % len(c.samples)
	if c.filled < len(c.samples) {
		c.filled++
	}
	return dt
}

func (c *clock) reset() {
	c.last = time.Time{}
}

// rate returns ticks per second averaged over the window.
func (c *clock) rate() float64 {
	if c.filled == 0 || c.sum <= 0 {
		return 0
	}
	return float64(c.filled) / c.sum.Seconds()
}
