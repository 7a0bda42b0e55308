// Package types holds the JSON shapes exchanged over the HTTP API.
package types

import (
	"encoding/json"
	"time"

	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/timer"
)

// CalcRequest carries the calculator form. Numeric fields accept JSON
// numbers or numeric strings; a missing minutes field counts as zero.
type CalcRequest struct {
	VolumeMl   json.Number `json:"volumeMl"`
	Hours      json.Number `json:"hours"`
	Minutes    json.Number `json:"minutes,omitempty"`
	DropFactor int         `json:"dropFactor"`
}

// Prescription parses the form. It reports false for anything the
// calculator would reject.
func (r CalcRequest) Prescription() (rate.Prescription, bool) {
	return rate.ParsePrescription(r.VolumeMl.String(), r.Hours.String(), r.Minutes.String(), r.DropFactor)
}

// CalcResponse is a computed cadence.
type CalcResponse struct {
	DropsPerMinute      int     `json:"dropsPerMinute"`
	DropsPerMinuteExact float64 `json:"dropsPerMinuteExact"`
	IntervalMs          float64 `json:"intervalMs"`
	SecondsPerDrop      float64 `json:"secondsPerDrop"`
	DurationMinutes     float64 `json:"durationMinutes"`
	DefaultLabel        string  `json:"defaultLabel"`
}

// NewCalcResponse builds the response for p and its cadence c.
func NewCalcResponse(p rate.Prescription, c rate.Cadence, volume string) CalcResponse {
	return CalcResponse{
		DropsPerMinute:      c.DisplayDropsPerMinute(),
		DropsPerMinuteExact: c.DropsPerMinute,
		IntervalMs:          c.IntervalMs,
		SecondsPerDrop:      c.SecondsPerDrop(),
		DurationMinutes:     p.DurationMinutes(),
		DefaultLabel:        rate.DefaultLabel(volume, p.DurationMinutes()),
	}
}

// MetronomeStartRequest starts the metronome either from a prescription or
// from an explicit interval. IntervalMs wins when both are given.
type MetronomeStartRequest struct {
	CalcRequest
	IntervalMs float64 `json:"intervalMs,omitempty"`
}

// IntervalRequest changes the running interval.
type IntervalRequest struct {
	IntervalMs float64 `json:"intervalMs"`
}

// ToggleRequest flips a boolean setting.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// MetronomeState reports the scheduler's public state.
type MetronomeState struct {
	Running          bool    `json:"running"`
	IntervalMs       float64 `json:"intervalMs"`
	SoundEnabled     bool    `json:"soundEnabled"`
	VibrationEnabled bool    `json:"vibrationEnabled"`
}

// CreateTimerRequest starts a countdown from the calculator form. The drop
// factor does not affect the countdown and defaults to 20 when omitted.
type CreateTimerRequest struct {
	CalcRequest
	Label string `json:"label,omitempty"`
}

// Timer is a countdown as shown to clients.
type Timer struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	VolumeMl      string  `json:"volumeMl"`
	StartTime     int64   `json:"startTime"`
	EndTime       int64   `json:"endTime"`
	RemainingMs   int64   `json:"remainingMs"`
	Progress      float64 `json:"progress"`
	WarnedNearEnd bool    `json:"warnedNearEnd"`
}

// NewTimer converts e as seen at now.
func NewTimer(e timer.Entry, now time.Time) Timer {
	return Timer{
		ID:            e.ID,
		Label:         e.Label,
		VolumeMl:      e.VolumeMl,
		StartTime:     e.StartTime.UnixMilli(),
		EndTime:       e.EndTime.UnixMilli(),
		RemainingMs:   e.Remaining(now).Milliseconds(),
		Progress:      timer.Progress(e, now),
		WarnedNearEnd: e.WarnedNearEnd,
	}
}

// TimerList is the response for GET /timers.
type TimerList struct {
	Timers    []Timer `json:"timers"`
	MaxActive int     `json:"maxActive"`
}

// Stats is a snapshot of the whole service for monitoring.
type Stats struct {
	Started         bool       `json:"started"`
	Metronome       beat.Stats `json:"metronome"`
	ActiveTimers    int        `json:"activeTimers"`
	MaxActiveTimers int        `json:"maxActiveTimers"`
	LastSweep       time.Time  `json:"lastSweep"`
}
