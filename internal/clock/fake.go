package clock

import (
	"sort"
	"sync"
	"time"
)

// NewFake returns a FakeClock frozen at initial. Time moves only when
// Advance is called; pending timers, tickers, and sleeps fire when the
// clock passes their deadline.
func NewFake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.registered = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use. AfterFunc callbacks run synchronously inside Advance
// in deadline order; calling Advance or Sleep from within a callback
// deadlocks.
type FakeClock struct {
	mu         sync.Mutex
	current    time.Time
	pending    []*pendingTimer
	registered *sync.Cond
}

// pendingTimer is one scheduled After/AfterFunc/Ticker/Sleep waiter.
type pendingTimer struct {
	deadline time.Time

	// ch receives the fire time for After, Sleep, and Ticker waiters;
	// nil for AfterFunc.
	ch chan time.Time

	// fn runs synchronously during Advance for AfterFunc waiters; nil
	// otherwise.
	fn func()

	// interval is non-zero for tickers; the waiter is rescheduled at
	// deadline+interval after firing.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the frozen current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a one-shot waiter. Receives immediately if d <= 0.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.pending = append(c.pending, &pendingTimer{
		deadline: c.current.Add(d),
		ch:       ch,
	})
	c.registered.Broadcast()
	return ch
}

// AfterFunc schedules f after d. If d <= 0, f runs synchronously
// before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d <= 0 {
		c.mu.Unlock()
		f()
		c.mu.Lock()
		return &Timer{
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	p := &pendingTimer{
		deadline: c.current.Add(d),
		fn:       f,
	}
	c.pending = append(c.pending, p)
	c.registered.Broadcast()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if p.stopped || p.fired {
				return false
			}
			p.stopped = true
			return true
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := !p.stopped && !p.fired
			p.stopped = false
			p.fired = false
			p.deadline = c.current.Add(d)
			if !wasActive {
				// Fired waiters were dropped from the list; re-add.
				c.pending = append(c.pending, p)
				c.registered.Broadcast()
			}
			return wasActive
		},
	}
}

// NewTicker registers a repeating waiter. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	p := &pendingTimer{
		deadline: c.current.Add(d),
		ch:       ch,
		interval: d,
	}
	c.pending = append(c.pending, p)
	c.registered.Broadcast()

	return &Ticker{
		C: ch,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			p.stopped = true
		},
		resetFunc: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			p.interval = d
			p.deadline = c.current.Add(d)
			p.stopped = false
		},
	}
}

// Sleep blocks until the clock advances past the deadline.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls inside the new window, in deadline order. Channel
// sends are non-blocking: a tick that finds its buffer full is dropped,
// matching time.Ticker. Tickers spanning several intervals fire once
// per interval.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}

		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})

		for _, p := range due {
			if p.fn != nil {
				p.fn()
			} else if p.ch != nil {
				select {
				case p.ch <- target:
				default:
				}
			}
		}
	}
}

// takeDue removes waiters due at or before target from the pending
// list, reschedules tickers, and returns the waiters to fire.
func (c *FakeClock) takeDue(target time.Time) []*pendingTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*pendingTimer
	var rest []*pendingTimer

	for _, p := range c.pending {
		if p.stopped {
			continue
		}
		if !p.deadline.After(target) {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}

	for _, p := range due {
		if p.interval > 0 {
			p.deadline = p.deadline.Add(p.interval)
			rest = append(rest, p)
		} else {
			p.fired = true
		}
	}

	c.pending = rest
	return due
}

// WaitForTimers blocks until at least n waiters are registered and not
// yet fired. It closes the race between a goroutine arming its timers
// and the test advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of active waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, p := range c.pending {
		if !p.stopped {
			n++
		}
	}
	return n
}
