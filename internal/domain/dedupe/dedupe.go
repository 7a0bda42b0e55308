// Package dedupe keeps a bounded set of notification tags that were already
// delivered, so repeated notifications for the same tag can be coalesced.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records seen tags.
type Deduper interface {
	// SeenAndRecord reports whether tag was already recorded and records it
	// when it was not. The check and the insert are atomic.
	SeenAndRecord(ctx context.Context, tag string) bool

	// Forget removes tag so a later notification with it is delivered again.
	// Used when delivery of a freshly recorded tag failed.
	Forget(ctx context.Context, tag string)

	Size() int
}

// tagSet implements Deduper with a map plus insertion-ordered list.
// When bounded, the oldest tag is evicted first.
type tagSet struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int // <= 0 means unbounded
}

// NewTagSet creates an in-memory Deduper.
func NewTagSet(opts ...Option) Deduper {
	d := &tagSet{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *tagSet) SeenAndRecord(_ context.Context, tag string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[tag]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[tag] = d.order.PushBack(tag)
	return false
}

func (d *tagSet) Forget(_ context.Context, tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[tag]; ok {
		d.order.Remove(el)
		delete(d.seen, tag)
	}
}

func (d *tagSet) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
