// Package coalesce turns bursts of change signals into one delayed trigger
// per quiet period.
package coalesce

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/marksync/internal/clock"
	"github.com/grovetools/marksync/logging"
	"github.com/sirupsen/logrus"
)

// DefaultWindow is the quiet period after the last signal before firing.
const DefaultWindow = 30 * time.Second

// State is the scheduling state.
type State int

const (
	// Idle has no pending deadline.
	Idle State = iota
	// Pending has exactly one deadline outstanding.
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// FireFunc runs one cycle. It runs to completion; new signals arriving
// meanwhile open a new window instead of being dropped.
type FireFunc func(ctx context.Context)

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithClock injects the clock. The default is the wall clock.
func WithClock(c clock.Clock) Option {
	return func(co *Coalescer) { co.clock = c }
}

// WithContext sets the context handed to the fire callback.
func WithContext(ctx context.Context) Option {
	return func(co *Coalescer) { co.ctx = ctx }
}

// Coalescer is an Idle/Pending state machine. Every Signal (re)starts the
// window; when it elapses without another Signal the fire callback runs.
type Coalescer struct {
	window time.Duration
	fire   FireFunc
	clock  clock.Clock
	ctx    context.Context
	logger *logrus.Entry

	mu       sync.Mutex
	state    State
	deadline time.Time
	timer    clock.Timer
	// gen stamps each scheduled timer; a callback whose generation is stale
	// (its timer was replaced or stopped too late) does nothing.
	gen     uint64
	firing  int
	stopped bool
	fires   uint64

	inflight sync.WaitGroup
}

// New creates an idle Coalescer. A non-positive window uses DefaultWindow.
func New(window time.Duration, fire FireFunc, opts ...Option) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Coalescer{
		window: window,
		fire:   fire,
		clock:  clock.Real{},
		ctx:    context.Background(),
		logger: logging.NewLogger("coalesce"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signal records a change. The pending deadline, if any, is replaced by
// now+window. It returns false after Stop.
func (c *Coalescer) Signal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}

	rescheduled := c.state == Pending
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.state = Pending
	c.deadline = c.clock.Now().Add(c.window)
	c.timer = c.clock.AfterFunc(c.window, func() { c.expire(gen) })

	c.logger.WithFields(logrus.Fields{
		"deadline":    c.deadline.Format(time.RFC3339),
		"rescheduled": rescheduled,
	}).Debug("Change signal")
	return true
}

// expire runs when a timer elapses.
func (c *Coalescer) expire(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen || c.state != Pending {
		c.mu.Unlock()
		return
	}
	c.beginFireLocked()
	c.mu.Unlock()

	c.run()
}

// Flush fires immediately when Pending. It returns false when Idle. The
// cycle runs on the caller's goroutine.
func (c *Coalescer) Flush() bool {
	c.mu.Lock()
	if c.stopped || c.state != Pending {
		c.mu.Unlock()
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.beginFireLocked()
	c.mu.Unlock()

	c.logger.Info("Flushing pending window")
	c.run()
	return true
}

// beginFireLocked moves to Idle and accounts for the cycle about to run.
// Must be called with c.mu held.
func (c *Coalescer) beginFireLocked() {
	c.state = Idle
	c.deadline = time.Time{}
	c.timer = nil
	c.firing++
	c.fires++
	c.inflight.Add(1)
}

func (c *Coalescer) run() {
	defer func() {
		c.mu.Lock()
		c.firing--
		c.mu.Unlock()
		c.inflight.Done()
	}()
	c.fire(c.ctx)
}

// Stop cancels any pending window and rejects later signals. In-flight
// cycles are not interrupted; use Wait to block on them.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.stopped = true
	c.state = Idle
	c.deadline = time.Time{}
	c.timer = nil
}

// Wait blocks until no cycle is running.
func (c *Coalescer) Wait() {
	c.inflight.Wait()
}

// State returns the current state.
func (c *Coalescer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deadline returns the pending deadline; ok is false when Idle.
func (c *Coalescer) Deadline() (deadline time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Pending {
		return time.Time{}, false
	}
	return c.deadline, true
}

// Firing reports whether a cycle is running.
func (c *Coalescer) Firing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firing > 0
}

// Fires returns how many cycles have started.
func (c *Coalescer) Fires() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fires
}

// Window returns the configured window.
func (c *Coalescer) Window() time.Duration {
	return c.window
}
