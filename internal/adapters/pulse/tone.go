package pulse

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const (
	toneSampleRate = beep.SampleRate(44100)
	toneFrequency  = 800.0
	toneDuration   = 100 * time.Millisecond
	toneAttack     = 5 * time.Millisecond
	toneGain       = 0.3
)

// Tone plays a short sine blip through the default audio device. The
// device is opened by Unlock; until then, and after a failed Unlock, pulses
// are silent.
type Tone struct {
	once    sync.Once
	initErr error
	ready   atomic.Bool

	frequency float64
	duration  time.Duration

	initSpeaker func(beep.SampleRate, int) error
	play        func(...beep.Streamer)
}

// ToneOption configures a Tone.
type ToneOption func(*Tone)

// WithFrequency sets the tone pitch in Hz.
func WithFrequency(hz float64) ToneOption {
	return func(t *Tone) {
		if hz > 0 {
			t.frequency = hz
		}
	}
}

// WithToneDuration sets how long each blip lasts.
func WithToneDuration(d time.Duration) ToneOption {
	return func(t *Tone) {
		if d > 0 {
			t.duration = d
		}
	}
}

// NewTone creates a Tone.
func NewTone(opts ...ToneOption) *Tone {
	t := &Tone{
		frequency:   toneFrequency,
		duration:    toneDuration,
		initSpeaker: speaker.Init,
		play:        speaker.Play,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Unlock opens the audio device once. Later calls return the first result.
func (t *Tone) Unlock() error {
	t.once.Do(func() {
		if err := t.initSpeaker(toneSampleRate, toneSampleRate.N(toneDuration/2)); err != nil {
			t.initErr = fmt.Errorf("%w: audio: %w", ErrBackendUnavailable, err)
			return
		}
		t.ready.Store(true)
	})
	return t.initErr
}

func (t *Tone) EmitPulse() {
	if !t.ready.Load() {
		return
	}
	t.play(blip(toneSampleRate, t.frequency, t.duration))
}

func (t *Tone) EmitHaptic() {}

// blip returns a sine wave with a short linear attack and a linear decay to
// silence over d.
func blip(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	attack := sr.N(toneAttack)
	if attack < 1 {
		attack = 1
	}
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= total {
				break
			}
			var env float64
			if pos < attack {
				env = float64(pos) / float64(attack)
			} else {
				env = float64(total-pos) / float64(total-attack)
			}
			v := toneGain * env * math.Sin(2*math.Pi*freq*float64(pos)/float64(sr))
			samples[i][0], samples[i][1] = v, v
			pos++
			n++
		}
		return n, true
	})
}
