// Package clock polls a refresh deadline and fires once when it has passed.
package clock

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the poll period.
const DefaultInterval = 500 * time.Millisecond

// Clock runs at most one poll timer at a time. A zero deadline is unarmed.
type Clock struct {
	interval time.Duration
	fire     func()
	nowFunc  func() time.Time
	log      zerolog.Logger

	mu         sync.Mutex
	deadline   time.Time
	stop       chan struct{}
	generation uint64
	closed     bool
}

// Option configures a Clock.
type Option func(*Clock)

// WithNowFunc sets the time source (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Clock) {
		c.nowFunc = now
	}
}

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Clock) {
		c.log = l
	}
}

// New creates a stopped clock that calls fire when an armed deadline passes.
func New(fire func(), options ...Option) *Clock {
	c := &Clock{
		interval: DefaultInterval,
		fire:     fire,
		nowFunc:  time.Now,
		log:      log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Start cancels any running timer, arms deadline and starts polling. The
// first check runs synchronously so a past deadline fires immediately.
// Start does nothing once the clock is closed.
func (c *Clock) Start(deadline time.Time) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.generation++
	gen := c.generation
	stop := make(chan struct{})
	c.stop = stop
	c.deadline = deadline
	c.mu.Unlock()

	c.log.Debug().Time("deadline", deadline).Uint64("generation", gen).Msg("refresh clock started")

	go c.run(gen, stop)
	c.tick(gen)
}

// Stop cancels the running timer, if any.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Close stops the clock for good; later Starts are ignored.
func (c *Clock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.closed = true
	c.deadline = time.Time{}
}

// Tick runs one check against the current timer.
func (c *Clock) Tick() {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.tick(gen)
}

// Active reports whether a timer is running.
func (c *Clock) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Deadline returns the armed deadline.
func (c *Clock) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

func (c *Clock) run(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick(gen)
		}
	}
}

// tick fires at most once per generation; the timer is stopped before fire runs.
func (c *Clock) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.stop == nil || c.deadline.IsZero() || c.nowFunc().Before(c.deadline) {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.mu.Unlock()

	c.log.Debug().Uint64("generation", gen).Msg("refresh deadline reached")
	if c.fire != nil {
		c.fire()
	}
}

func (c *Clock) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}
