// Package model contains value types passed between the core and its adapters.
package model

import "time"

// NotificationKind identifies which countdown transition produced a notification.
type NotificationKind string

const (
	// KindNearEnd fires once when a countdown enters the near-end window.
	KindNearEnd NotificationKind = "near-end"
	// KindCompleted fires once when a warned countdown reaches its end.
	KindCompleted NotificationKind = "completed"
)

// Notification is a user-facing message emitted by the timer registry.
// Tag is stable per entry and kind so a dispatcher can coalesce repeats.
type Notification struct {
	Kind               NotificationKind `json:"kind"`
	EntryID            string           `json:"entryId"`
	Title              string           `json:"title"`
	Body               string           `json:"body"`
	Tag                string           `json:"tag"`
	RequireInteraction bool             `json:"requireInteraction"`
	At                 time.Time        `json:"at"`
}

// Tag builds the dedupe tag for an entry and kind.
func Tag(entryID string, kind NotificationKind) string {
	return "timer-" + entryID + "-" + string(kind)
}
