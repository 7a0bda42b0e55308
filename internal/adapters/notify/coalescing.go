package notify

import (
	"context"

	"github.com/okian/dripcue/internal/domain/dedupe"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/metrics"
)

// Coalescing drops notifications whose tag was already delivered, the way a
// notification centre replaces an older notification with the same tag.
// A tag whose delivery failed is forgotten so a later attempt can go through.
type Coalescing struct {
	next Dispatcher
	seen dedupe.Deduper
}

// NewCoalescing wraps next with tag coalescing backed by seen.
func NewCoalescing(next Dispatcher, seen dedupe.Deduper) *Coalescing {
	if seen == nil {
		seen = dedupe.NewTagSet()
	}
	return &Coalescing{next: next, seen: seen}
}

func (c *Coalescing) Notify(ctx context.Context, n model.Notification) error {
	if n.Tag != "" && c.seen.SeenAndRecord(ctx, n.Tag) {
		metrics.RecordNotification(string(n.Kind), "coalescing", metrics.OutcomeDropped)
		return nil
	}
	if err := c.next.Notify(ctx, n); err != nil {
		if n.Tag != "" {
			c.seen.Forget(ctx, n.Tag)
		}
		return err
	}
	return nil
}
