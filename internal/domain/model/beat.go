package model

import "time"

// Beat describes one fired metronome beat.
type Beat struct {
	Seq      uint64    // 1-based index since the last start
	Deadline time.Time // scheduled instant
	FiredAt  time.Time // instant the fire callback observed
}

// Lateness returns how far after its deadline the beat fired.
func (b Beat) Lateness() time.Duration {
	return b.FiredAt.Sub(b.Deadline)
}
