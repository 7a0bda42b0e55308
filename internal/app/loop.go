package service

import (
	"sync"
	"time"

	"github.com/okian/dripcue/internal/clock"
)

// loop runs fn every period. The next run is armed only after fn returns,
// so runs never overlap however long fn takes.
type loop struct {
	clock  clock.Clock
	period time.Duration
	fn     func(now time.Time)

	mu      sync.Mutex
	running sync.Mutex // held while fn runs
	timer   clock.Timer
	gen     uint64
	active  bool
}

func newLoop(c clock.Clock, period time.Duration, fn func(time.Time)) *loop {
	return &loop{clock: c, period: period, fn: fn}
}

func (l *loop) start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return
	}
	l.active = true
	l.gen++
	l.armLocked(l.gen)
}

// stop cancels the next run and waits for one in progress to finish.
func (l *loop) stop() {
	l.mu.Lock()
	l.active = false
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	l.running.Lock()
	defer l.running.Unlock()
}

func (l *loop) armLocked(gen uint64) {
	l.timer = l.clock.AfterFunc(l.period, func() { l.run(gen) })
}

func (l *loop) run(gen uint64) {
	l.running.Lock()
	l.mu.Lock()
	if !l.active || gen != l.gen {
		l.mu.Unlock()
		l.running.Unlock()
		return
	}
	l.mu.Unlock()

	l.fn(l.clock.Now())
	l.running.Unlock()

	l.mu.Lock()
	if l.active && gen == l.gen {
		l.armLocked(gen)
	}
	l.mu.Unlock()
}
