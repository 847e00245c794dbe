package session

import (
	"sync"
	"time"
)

// Countdown is the single owned session TTL timer. It ticks down once per
// second and publishes SignalSessionExpired when it reaches zero.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
	watchers  map[int]chan int
	nextID    int
	tick      time.Duration
	bus       *Bus
}

// NewCountdown creates a stopped countdown. bus may be nil.
func NewCountdown(bus *Bus) *Countdown {
	return &Countdown{
		watchers: make(map[int]chan int),
		tick:     time.Second,
		bus:      bus,
	}
}

// WithTick changes the tick length. Only tests need this.
func (c *Countdown) WithTick(d time.Duration) *Countdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = d
	return c
}

// Start (re)starts the countdown from seconds.
func (c *Countdown) Start(seconds int) {
	c.Stop()

	c.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true
	c.broadcastLocked()
	stop, done, tick := c.stopCh, c.done, c.tick
	c.mu.Unlock()

	go c.loop(stop, done, tick)
}

// Reset sets the remaining seconds. A stopped countdown is started.
func (c *Countdown) Reset(seconds int) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.Start(seconds)
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.broadcastLocked()
	c.mu.Unlock()
}

// Stop halts the countdown without publishing expiry. Stopping a stopped
// countdown is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()

	<-done
}

// Remaining returns the remaining seconds.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Subscribe returns a channel that always holds the latest remaining value.
// Slow readers skip intermediate values. The returned function
// unsubscribes and closes the channel.
func (c *Countdown) Subscribe() (<-chan int, func()) {
	ch := make(chan int, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	ch <- c.remaining
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.watchers, id)
			close(ch)
		})
	}
}

func (c *Countdown) loop(stop, done chan struct{}, tick time.Duration) {
	defer close(done)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		select {
		case <-stop:
			c.mu.Unlock()
			return
		default:
		}

		c.remaining--
		if c.remaining > 0 {
			c.broadcastLocked()
			c.mu.Unlock()
			continue
		}

		c.remaining = 0
		c.running = false
		c.broadcastLocked()
		c.mu.Unlock()

		if c.bus != nil {
			_ = c.bus.Publish(Event{Signal: SignalSessionExpired, Reason: "session countdown reached zero"})
		}
		return
	}
}

// broadcastLocked pushes the current value to every watcher, replacing any
// value not yet read. Caller holds c.mu.
func (c *Countdown) broadcastLocked() {
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.remaining:
		default:
		}
	}
}
