// Package clock abstracts time so the timer-driven pieces of the agent
// (session polling, heartbeat gating, frame sampling) can be tested
// deterministically. Production code injects Real(); tests inject a
// FakeClock and drive it with Advance.
package clock

import "time"

// Clock is the time surface used by the agent's timer loops. Code that
// would call time.Now, time.After, time.AfterFunc, time.NewTicker, or
// time.Sleep takes a Clock instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the fire time once d has
	// elapsed. Receives immediately when d <= 0.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f after d has elapsed. The returned Timer can
	// cancel the pending call with Stop; its C field is nil, matching
	// time.AfterFunc.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker delivers periodic ticks on C. C is buffered with capacity 1;
// ticks are dropped, not queued, when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset restarts the ticker with interval d; the next tick arrives
// after d elapses.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }

// Timer is a single scheduled event. For AfterFunc timers C is nil.
type Timer struct {
	C <-chan time.Time

	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels the timer. Returns false if it already fired or was
// already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset re-arms the timer to fire after d. Returns true if the timer
// was still active.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{
		stopFunc:  t.Stop,
		resetFunc: t.Reset,
	}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{
		C:         t.C,
		stopFunc:  t.Stop,
		resetFunc: t.Reset,
	}
}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
