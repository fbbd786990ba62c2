package refresh

import "time"

// Countdown counts whole seconds down to the next refresh.
type Countdown struct {
	total     int
	remaining int
}

func NewCountdown(interval time.Duration) *Countdown {
	secs := int(interval / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &Countdown{total: secs, remaining: secs}
}

// Tick advances one second. It returns true when a refresh is due, and
// rearms itself.
func (c *Countdown) Tick() bool {
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = c.total
		return true
	}
	return false
}

func (c *Countdown) Reset() {
	c.remaining = c.total
}

func (c *Countdown) Remaining() int {
	return c.remaining
}
