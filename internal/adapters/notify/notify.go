// Package notify delivers timer notifications to people: structured log
// lines, an outbound webhook, or an MQTT topic. Wrappers add fan-out, tag
// coalescing and asynchronous queued delivery.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/logger"
	"github.com/okian/dripcue/pkg/metrics"
)

// Dispatcher delivers a notification.
type Dispatcher interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Payload is the wire form shared by the webhook and MQTT backends.
type Payload struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Tag                string `json:"tag"`
	Kind               string `json:"kind"`
	EntryID            string `json:"entryId"`
	RequireInteraction bool   `json:"requireInteraction"`
	At                 int64  `json:"at"` // unix ms
}

// NewPayload converts a notification to its wire form.
func NewPayload(n model.Notification) Payload {
	return Payload{
		Title:              n.Title,
		Body:               n.Body,
		Tag:                n.Tag,
		Kind:               string(n.Kind),
		EntryID:            n.EntryID,
		RequireInteraction: n.RequireInteraction,
		At:                 n.At.UnixMilli(),
	}
}

// Log writes each notification as a structured log line.
type Log struct {
	log logger.Logger
}

// NewLog returns a Log dispatcher. A nil logger uses the global one.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Named("notify")
	}
	return &Log{log: l}
}

func (d *Log) Notify(ctx context.Context, n model.Notification) error {
	d.log.Info(ctx, n.Title,
		logger.String("body", n.Body),
		logger.String("tag", n.Tag),
		logger.String("kind", string(n.Kind)),
		logger.Bool("require_interaction", n.RequireInteraction),
	)
	metrics.RecordNotification(string(n.Kind), "log", metrics.OutcomeOK)
	return nil
}

// Multi fans a notification out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for i, d := range m {
		if err := d.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
