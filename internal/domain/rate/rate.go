// Package rate converts an infusion prescription into a drip cadence.
//
// Everything here is pure: no clock, no I/O, no shared state.
package rate

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DropFactor is the number of drops that make up one millilitre for a given
// administration set.
type DropFactor int

const (
	// DropFactor20 is the standard macro-drip set.
	DropFactor20 DropFactor = 20
	// DropFactor60 is the micro-drip (pediatric) set.
	DropFactor60 DropFactor = 60
)

// Valid reports whether f is one of the supported administration sets.
func (f DropFactor) Valid() bool {
	return f == DropFactor20 || f == DropFactor60
}

// Prescription is the user's input: volume to infuse, over how long, on which set.
type Prescription struct {
	VolumeMl   float64
	Hours      float64
	Minutes    float64
	DropFactor DropFactor
}

// DurationMinutes returns the total infusion time in minutes.
func (p Prescription) DurationMinutes() float64 {
	return p.Hours*60 + p.Minutes
}

// Cadence is the computed drip rate. The zero value is not a valid cadence;
// Compute signals "no cadence" through its boolean instead.
type Cadence struct {
	DropsPerMinute float64
	IntervalMs     float64
}

// DisplayDropsPerMinute rounds the rate to the nearest whole drop for display.
func (c Cadence) DisplayDropsPerMinute() int {
	return int(math.Round(c.DropsPerMinute))
}

// SecondsPerDrop is the interval expressed in seconds.
func (c Cadence) SecondsPerDrop() float64 {
	return c.IntervalMs / 1000
}

// Interval returns the beat interval as a Duration, rounded to the nanosecond.
func (c Cadence) Interval() time.Duration {
	return time.Duration(math.Round(c.IntervalMs * float64(time.Millisecond)))
}

// BeatsPerMinute is the metronome tempo implied by the interval.
func (c Cadence) BeatsPerMinute() float64 {
	if c.IntervalMs <= 0 {
		return 0
	}
	return 60000 / c.IntervalMs
}

// Compute derives the cadence for p. It reports false when p is invalid:
// non-positive volume, negative or zero total duration, an unsupported drop
// factor, or any non-finite field. No clamping is applied to the result.
func Compute(p Prescription) (Cadence, bool) {
	if !finite(p.VolumeMl) || !finite(p.Hours) || !finite(p.Minutes) {
		return Cadence{}, false
	}
	if p.VolumeMl <= 0 || p.Hours < 0 || p.Minutes < 0 || !p.DropFactor.Valid() {
		return Cadence{}, false
	}
	total := p.DurationMinutes()
	if total <= 0 {
		return Cadence{}, false
	}

	dpm := p.VolumeMl * float64(p.DropFactor) / total
	if dpm <= 0 || !finite(dpm) {
		return Cadence{}, false
	}
	return Cadence{
		DropsPerMinute: dpm,
		IntervalMs:     60000 / dpm,
	}, true
}

// ParsePrescription builds a Prescription from form input. Blank hours or
// minutes count as zero; a blank or non-numeric volume, or any non-numeric
// field, yields false.
func ParsePrescription(volume, hours, minutes string, factor int) (Prescription, bool) {
	v, ok := parseField(volume, false)
	if !ok {
		return Prescription{}, false
	}
	h, ok := parseField(hours, true)
	if !ok {
		return Prescription{}, false
	}
	m, ok := parseField(minutes, true)
	if !ok {
		return Prescription{}, false
	}
	return Prescription{VolumeMl: v, Hours: h, Minutes: m, DropFactor: DropFactor(factor)}, true
}

// DefaultLabel is the label given to a countdown started from a calculation
// without an explicit name.
func DefaultLabel(volume string, totalMinutes float64) string {
	return "Drip " + strings.TrimSpace(volume) + " mL (" +
		strconv.FormatFloat(totalMinutes, 'f', -1, 64) + " min)"
}

func parseField(s string, blankIsZero bool) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, blankIsZero
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
