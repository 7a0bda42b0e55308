// Package beat implements the metronome: a look-ahead scheduler that fires
// one pulse per drip interval with bounded drift.
//
// A frame-paced tick loop arms one-shot callbacks for every deadline that
// falls inside the look-ahead window. Deadlines are computed as
// anchor + n*interval, so per-callback lateness never accumulates.
package beat

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/logger"
	"github.com/okian/dripcue/pkg/metrics"
)

// PulseSink receives the audible and haptic side of a beat. Both calls must
// return promptly.
type PulseSink interface {
	EmitPulse()
	EmitHaptic()
}

// Unlocker is implemented by sinks that need a one-time activation on the
// same user action that starts the metronome.
type Unlocker interface {
	Unlock() error
}

// VisualSink receives the on/off state of the visual pulse.
type VisualSink interface {
	SetPulsing(on bool)
}

// Stats is a point-in-time view of scheduler activity.
type Stats struct {
	Running        bool          `json:"running"`
	IntervalMs     float64       `json:"intervalMs"`
	BeatsFired     uint64        `json:"beatsFired"`
	BeatsScheduled uint64        `json:"beatsScheduled"`
	LastLateness   time.Duration `json:"lastLateness"`
	MaxLateness    time.Duration `json:"maxLateness"`
	SinkErrors     uint64        `json:"sinkErrors"`
}

// Scheduler drives a PulseSink at a fixed interval.
//
// Sinks and the beat observer run while the scheduler holds its dispatch
// lock; they may read scheduler state but must not call Start, Stop or
// SetIntervalMs.
type Scheduler struct {
	// fireMu serialises dispatch against Start/Stop. Lock order: fireMu, mu.
	fireMu sync.Mutex
	mu     sync.Mutex

	clock    clock.Clock
	log      logger.Logger
	sink     PulseSink
	visual   VisualSink
	observer func(model.Beat)

	lookAhead      time.Duration
	framePeriod    time.Duration
	visualDuration time.Duration
	minInterval    time.Duration

	soundEnabled     bool
	vibrationEnabled bool

	running    bool
	gen        uint64
	intervalMs float64
	anchor     time.Time
	next       uint64 // index of the next deadline to arm
	seq        uint64 // beats fired since the last start
	frame      clock.Timer
	pending    map[uint64]clock.Timer
	revert     clock.Timer
	pulsing    bool

	clampWarned bool

	stats Stats
}

// New constructs a Scheduler that emits into sink. sink may be nil, in which
// case only the visual pulse and observer are driven.
func New(sink PulseSink, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:          clock.Real(),
		log:            logger.Named("beat"),
		sink:           sink,
		lookAhead:      DefaultLookAhead,
		framePeriod:    DefaultFramePeriod,
		visualDuration: DefaultPulseVisualDuration,
		minInterval:    DefaultMinInterval,
		soundEnabled:   true,
		pending:        make(map[uint64]clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins emitting beats every intervalMs milliseconds, the first one
// immediately. Starting a running scheduler restarts it from now.
func (s *Scheduler) Start(intervalMs float64) error {
	if math.IsNaN(intervalMs) || math.IsInf(intervalMs, 0) || intervalMs <= 0 {
		return ErrInvalidInterval
	}
	s.unlockSink()

	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	wasPulsing := s.haltLocked()
	s.startLocked(intervalMs)
	effective := s.intervalMs
	s.mu.Unlock()
	if wasPulsing {
		s.setVisual(false)
	}

	metrics.UpdateSchedulerState(true, effective)
	s.log.Info(context.Background(), "metronome started", logger.Float64("interval_ms", effective))
	return nil
}

// Stop cancels the tick loop, every armed beat and the pending visual
// revert. No sink call happens after Stop returns.
func (s *Scheduler) Stop() {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	was := s.running
	wasPulsing := s.haltLocked()
	s.mu.Unlock()
	if wasPulsing {
		s.setVisual(false)
	}
	if was {
		metrics.UpdateSchedulerState(false, 0)
		s.log.Info(context.Background(), "metronome stopped")
	}
}

// SetIntervalMs changes the interval of a running scheduler. The deadline
// sequence is re-anchored at now. A non-positive value stops the scheduler.
func (s *Scheduler) SetIntervalMs(v float64) error {
	if !s.Running() {
		return ErrNotRunning
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidInterval
	}
	if v <= 0 {
		s.Stop()
		return nil
	}

	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	wasPulsing := s.haltLocked()
	s.startLocked(v)
	effective := s.intervalMs
	s.mu.Unlock()
	if wasPulsing {
		s.setVisual(false)
	}

	metrics.UpdateSchedulerState(true, effective)
	s.log.Debug(context.Background(), "metronome interval changed", logger.Float64("interval_ms", effective))
	return nil
}

// SetSoundEnabled toggles EmitPulse for subsequent beats.
func (s *Scheduler) SetSoundEnabled(on bool) {
	s.mu.Lock()
	s.soundEnabled = on
	s.mu.Unlock()
}

// SetVibrationEnabled toggles EmitHaptic for subsequent beats.
func (s *Scheduler) SetVibrationEnabled(on bool) {
	s.mu.Lock()
	s.vibrationEnabled = on
	s.mu.Unlock()
}

// SoundEnabled reports the sound toggle.
func (s *Scheduler) SoundEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.soundEnabled
}

// VibrationEnabled reports the haptic toggle.
func (s *Scheduler) VibrationEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vibrationEnabled
}

// Running reports whether the scheduler is emitting beats.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IntervalMs returns the effective interval, or 0 when stopped.
func (s *Scheduler) IntervalMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return s.intervalMs
}

// Pulsing reports whether the visual pulse is currently on.
func (s *Scheduler) Pulsing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulsing
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Running = s.running
	if s.running {
		st.IntervalMs = s.intervalMs
	}
	return st
}

// Tick arms every deadline inside the look-ahead window. The built-in frame
// loop calls it; drivers with their own frame source may call it too.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.tickLocked()
	}
}

func (s *Scheduler) startLocked(intervalMs float64) {
	if floor := float64(s.minInterval) / float64(time.Millisecond); intervalMs < floor {
		if !s.clampWarned {
			s.clampWarned = true
			s.log.Warn(context.Background(), "interval below practical minimum, raised",
				logger.Float64("requested_ms", intervalMs),
				logger.Float64("min_ms", floor),
			)
		}
		intervalMs = floor
	}

	s.gen++
	s.running = true
	s.intervalMs = intervalMs
	s.anchor = s.clock.Now()
	s.next = 0
	s.seq = 0
	s.stats.LastLateness = 0
	s.stats.MaxLateness = 0

	s.tickLocked()
	s.armFrameLocked(s.gen)
}

// haltLocked cancels everything armed by the current generation and reports
// whether the visual pulse was on.
func (s *Scheduler) haltLocked() bool {
	s.gen++
	s.running = false
	if s.frame != nil {
		s.frame.Stop()
		s.frame = nil
	}
	for idx, t := range s.pending {
		t.Stop()
		delete(s.pending, idx)
	}
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
	was := s.pulsing
	s.pulsing = false
	return was
}

func (s *Scheduler) deadline(n uint64) time.Time {
	offset := float64(n) * s.intervalMs * float64(time.Millisecond)
	return s.anchor.Add(time.Duration(math.Round(offset)))
}

func (s *Scheduler) tickLocked() {
	now := s.clock.Now()
	horizon := now.Add(s.lookAhead)
	gen := s.gen
	armed := 0
	for {
		d := s.deadline(s.next)
		if d.After(horizon) {
			break
		}
		delay := d.Sub(now)
		if delay < 0 {
			delay = 0
		}
		idx := s.next
		s.pending[idx] = s.clock.AfterFunc(delay, func() { s.fire(gen, idx, d) })
		s.next++
		armed++
	}
	if armed > 0 {
		s.stats.BeatsScheduled += uint64(armed)
		metrics.RecordBeatsScheduled(armed)
	}
}

func (s *Scheduler) armFrameLocked(gen uint64) {
	s.frame = s.clock.AfterFunc(s.framePeriod, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running || gen != s.gen {
			return
		}
		s.tickLocked()
		s.armFrameLocked(gen)
	})
}

func (s *Scheduler) fire(gen, idx uint64, deadline time.Time) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, idx)
	now := s.clock.Now()
	s.seq++
	b := model.Beat{Seq: s.seq, Deadline: deadline, FiredAt: now}
	late := b.Lateness()
	s.stats.BeatsFired++
	s.stats.LastLateness = late
	if late > s.stats.MaxLateness {
		s.stats.MaxLateness = late
	}
	sound, vibrate := s.soundEnabled, s.vibrationEnabled
	if s.revert != nil {
		s.revert.Stop()
	}
	s.pulsing = true
	s.revert = s.clock.AfterFunc(s.visualDuration, func() { s.endPulse(gen) })
	observer := s.observer
	s.mu.Unlock()

	if sound && s.sink != nil {
		s.safeCall("pulse", s.sink.EmitPulse)
	}
	if vibrate && s.sink != nil {
		s.safeCall("haptic", s.sink.EmitHaptic)
	}
	s.setVisual(true)
	if observer != nil {
		s.safeCall("observer", func() { observer(b) })
	}
	metrics.RecordBeatFired(float64(late) / float64(time.Millisecond))
}

func (s *Scheduler) endPulse(gen uint64) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || !s.pulsing {
		s.mu.Unlock()
		return
	}
	s.pulsing = false
	s.revert = nil
	s.mu.Unlock()
	s.setVisual(false)
}

func (s *Scheduler) setVisual(on bool) {
	if s.visual == nil {
		return
	}
	s.safeCall("visual", func() { s.visual.SetPulsing(on) })
}

func (s *Scheduler) unlockSink() {
	u, ok := s.sink.(Unlocker)
	if !ok {
		return
	}
	var err error
	s.safeCall("unlock", func() { err = u.Unlock() })
	if err != nil {
		s.log.Warn(context.Background(), "pulse sink unavailable, continuing silently", logger.Error(err))
		metrics.RecordPulseSinkError("unlock", "unavailable")
	}
}

// safeCall isolates the scheduler from collaborator panics.
func (s *Scheduler) safeCall(sink string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.stats.SinkErrors++
			s.mu.Unlock()
			metrics.RecordPulseSinkError(sink, "panic")
			s.log.Error(context.Background(), "pulse sink panicked",
				logger.String("sink", sink),
				logger.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
