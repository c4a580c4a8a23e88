package proctor

import (
	"sync"
	"time"
)

// Countdown counts a session's time budget down one second per tick and fires onExpire
// exactly once when it reaches zero.
type Countdown struct {
	total    int
	onExpire func()
	onTick   func(remaining int)

	mu         sync.Mutex
	remaining  int
	done       bool
	stopTicker func()
}

func NewCountdown(seconds int, onExpire func()) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	if onExpire == nil {
		onExpire = func() {}
	}
	return &Countdown{
		total:     seconds,
		remaining: seconds,
		onExpire:  onExpire,
		onTick:    func(int) {},
	}
}

// OnTick registers a callback for every tick. Set it before Start.
func (c *Countdown) OnTick(fn func(remaining int)) {
	if fn != nil {
		c.onTick = fn
	}
}

// Start ticks once per second on clock until expiry or Stop.
func (c *Countdown) Start(clock Clock) {
	stop := every(clock, time.Second, func() { c.Tick() })

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		stop()
		return
	}
	c.stopTicker = stop
	c.mu.Unlock()
}

// Tick advances the countdown by one second and returns the remaining seconds.
func (c *Countdown) Tick() int {
	c.mu.Lock()
	if c.done {
		rem := c.remaining
		c.mu.Unlock()
		return rem
	}
	if c.remaining > 0 {
		c.remaining--
	}
	rem := c.remaining
	expired := rem == 0
	var stop func()
	if expired {
		c.done = true
		stop, c.stopTicker = c.stopTicker, nil
	}
	c.mu.Unlock()

	c.onTick(rem)
	if expired {
		if stop != nil {
			stop()
		}
		c.onExpire()
	}
	return rem
}

// Stop halts the countdown without firing onExpire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.done = true
	stop := c.stopTicker
	c.stopTicker = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Elapsed is the number of seconds consumed so far.
func (c *Countdown) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total - c.remaining
}
