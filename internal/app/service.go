// Package service wires the calculator, the metronome and the countdown
// registry together and runs the background drivers that keep them moving.
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/timer"
	"github.com/okian/dripcue/internal/domain/types"
	"github.com/okian/dripcue/pkg/logger"
)

// Service owns the registry and the scheduler and runs three independent
// drivers: the scheduler's own frame loop, a sweep loop and an optional
// read-only redraw loop. The drivers never share a goroutine, so a slow
// sweep cannot delay a beat and a redraw never mutates countdowns.
//
// Redraw and sweep callbacks must not call Stop.
type Service struct {
	mu sync.RWMutex

	registry  *timer.Registry
	scheduler *beat.Scheduler
	clock     clock.Clock

	sweepPeriod  time.Duration
	redrawPeriod time.Duration
	onRedraw     func([]timer.Entry, time.Time)
	onSweep      func(timer.SweepResult)

	sweeper  *loop
	redrawer *loop

	started bool

	sweepMu   sync.Mutex
	lastSweep time.Time

	logger logger.Logger
}

// New constructs a Service around an already constructed registry and
// scheduler.
func New(registry *timer.Registry, scheduler *beat.Scheduler, opts ...Option) *Service {
	s := &Service{
		registry:     registry,
		scheduler:    scheduler,
		clock:        clock.Real(),
		sweepPeriod:  DefaultSweepPeriod,
		redrawPeriod: DefaultRedrawPeriod,
		logger:       logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the countdown registry.
func (s *Service) Registry() *timer.Registry { return s.registry }

// Scheduler exposes the metronome.
func (s *Service) Scheduler() *beat.Scheduler { return s.scheduler }

// Start loads persisted countdowns, runs one sweep right away and starts
// the drivers. A persistence failure while loading is logged and the
// service starts with whatever could be recovered.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting dripcue service...")

	if err := s.registry.Load(ctx); err != nil {
		s.logger.Error(ctx, "could not restore timers", logger.Error(err))
	}

	s.sweeper = newLoop(s.clock, s.sweepPeriod, s.sweep)
	s.sweep(s.clock.Now())
	s.sweeper.start()

	if s.onRedraw != nil {
		s.redrawer = newLoop(s.clock, s.redrawPeriod, s.redraw)
		s.redrawer.start()
	}

	s.started = true
	s.logger.Info(ctx, "dripcue service started",
		logger.Int("timers", s.registry.Len()),
		logger.Duration("sweep_period", s.sweepPeriod),
		logger.Duration("redraw_period", s.redrawPeriod),
	)
	return nil
}

// Stop halts the metronome and both loops. It waits for an in-flight sweep.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping dripcue service...")

	s.scheduler.Stop()
	if s.redrawer != nil {
		s.redrawer.stop()
	}
	s.sweeper.stop()

	s.started = false
	s.logger.Info(context.Background(), "dripcue service stopped")
}

func (s *Service) sweep(now time.Time) {
	res := s.registry.Sweep(context.Background(), now)
	if res.Skipped {
		return
	}
	s.sweepMu.Lock()
	s.lastSweep = now
	s.sweepMu.Unlock()
	if s.onSweep != nil {
		s.onSweep(res)
	}
}

func (s *Service) redraw(now time.Time) {
	s.onRedraw(s.registry.List(), now)
}

// SweepNow runs a sweep outside the schedule. It returns Skipped when the
// sweep loop is already in the middle of one.
func (s *Service) SweepNow(ctx context.Context) timer.SweepResult {
	return s.registry.Sweep(ctx, s.clock.Now())
}

// Calculate computes the cadence for p.
func (s *Service) Calculate(p rate.Prescription) (rate.Cadence, bool) {
	return rate.Compute(p)
}

// StartMetronome computes the cadence for p and starts (or retunes) the
// metronome at that interval.
func (s *Service) StartMetronome(p rate.Prescription) (rate.Cadence, error) {
	c, ok := rate.Compute(p)
	if !ok {
		return rate.Cadence{}, ErrInvalidPrescription
	}
	if err := s.scheduler.Start(c.IntervalMs); err != nil {
		return rate.Cadence{}, fmt.Errorf("start metronome: %w", err)
	}
	return c, nil
}

// StartMetronomeInterval starts the metronome at an explicit interval.
func (s *Service) StartMetronomeInterval(intervalMs float64) error {
	return s.scheduler.Start(intervalMs)
}

// StopMetronome stops the metronome. No beat fires after it returns.
func (s *Service) StopMetronome() {
	s.scheduler.Stop()
}

// SetMetronomeInterval retunes a running metronome.
func (s *Service) SetMetronomeInterval(intervalMs float64) error {
	return s.scheduler.SetIntervalMs(intervalMs)
}

// MetronomeState reports whether the metronome runs and how it is set up.
func (s *Service) MetronomeState() types.MetronomeState {
	return types.MetronomeState{
		Running:          s.scheduler.Running(),
		IntervalMs:       s.scheduler.IntervalMs(),
		SoundEnabled:     s.scheduler.SoundEnabled(),
		VibrationEnabled: s.scheduler.VibrationEnabled(),
	}
}

// SetSoundEnabled toggles the audible pulse.
func (s *Service) SetSoundEnabled(on bool) { s.scheduler.SetSoundEnabled(on) }

// SetVibrationEnabled toggles the haptic pulse.
func (s *Service) SetVibrationEnabled(on bool) { s.scheduler.SetVibrationEnabled(on) }

// StartTimerFromCalculation starts a countdown lasting the duration of p.
// An empty label gets the calculator's default label. The drop factor
// is not consulted; only the volume and duration have to be valid.
func (s *Service) StartTimerFromCalculation(ctx context.Context, p rate.Prescription, label string) (timer.Entry, error) {
	if p.DropFactor == 0 {
		p.DropFactor = rate.DropFactor20
	}
	if _, ok := rate.Compute(p); !ok {
		return timer.Entry{}, ErrInvalidPrescription
	}
	volume := strconv.FormatFloat(p.VolumeMl, 'f', -1, 64)
	return s.registry.Create(ctx, label, volume, p.DurationMinutes())
}

// Timers returns the active countdowns and the time of the snapshot.
func (s *Service) Timers() ([]timer.Entry, time.Time) {
	return s.registry.List(), s.clock.Now()
}

// DeleteTimer removes a countdown. Unknown ids are ignored.
func (s *Service) DeleteTimer(ctx context.Context, id string) bool {
	return s.registry.Delete(ctx, id)
}

// MaxActiveTimers is the registry cap.
func (s *Service) MaxActiveTimers() int { return s.registry.MaxActive() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	s.sweepMu.Lock()
	last := s.lastSweep
	s.sweepMu.Unlock()
	return types.Stats{
		Started:         started,
		Metronome:       s.scheduler.Stats(),
		ActiveTimers:    s.registry.Len(),
		MaxActiveTimers: s.registry.MaxActive(),
		LastSweep:       last,
	}
}
