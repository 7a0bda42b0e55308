package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Clock. Time only moves when Advance or Set is
// called; due callbacks run synchronously on the caller's goroutine in
// deadline order (ties in registration order).
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*fakeTimer
	jitter func() time.Duration
}

// FakeOption configures a Fake clock.
type FakeOption func(*Fake)

// WithJitter adds the returned duration to every AfterFunc delay, which
// simulates coarse or bursty callback delivery.
func WithJitter(fn func() time.Duration) FakeOption {
	return func(f *Fake) {
		f.jitter = fn
	}
}

// NewFake returns a Fake clock positioned at start.
func NewFake(start time.Time, opts ...FakeOption) *Fake {
	f := &Fake{now: start}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type fakeTimer struct {
	clock *Fake
	at    time.Time
	seq   uint64
	fn    func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.remove(t)
	return true
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers fn to run once virtual time reaches now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jitter != nil {
		d += f.jitter()
	}
	if d < 0 {
		d = 0
	}
	f.seq++
	t := &fakeTimer{clock: f, at: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves virtual time forward by d, running every callback that
// becomes due, including callbacks registered by callbacks.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	f.runUntil(target)
}

// Set moves virtual time to t. Moving backwards is ignored.
func (f *Fake) Set(t time.Time) {
	f.runUntil(t)
}

// Pending returns the number of registered callbacks that have not run.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) runUntil(target time.Time) {
	for {
		f.mu.Lock()
		next := f.nextDue(target)
		if next == nil {
			if target.After(f.now) {
				f.now = target
			}
			f.mu.Unlock()
			return
		}
		next.done = true
		f.remove(next)
		if next.at.After(f.now) {
			f.now = next.at
		}
		f.mu.Unlock()
		next.fn()
	}
}

// nextDue must be called with f.mu held.
func (f *Fake) nextDue(target time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].at.Equal(f.timers[j].at) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].at.Before(f.timers[j].at)
	})
	if f.timers[0].at.After(target) {
		return nil
	}
	return f.timers[0]
}

// remove must be called with f.mu held.
func (f *Fake) remove(t *fakeTimer) {
	for i, c := range f.timers {
		if c == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}
