package timer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/pkg/logger"
	"github.com/okian/dripcue/pkg/metrics"
)

// Registry owns the set of active countdowns.
//
// All mutations are serialised by mu. Persistence is write-through: every
// mutation that changes membership or a flag is followed by a write of the
// latest snapshot. Writes are serialised by writeMu and always carry the
// state current at write time, so the store converges on the newest state
// even when mutations race.
type Registry struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	entries []Entry

	store      Store
	dispatcher Dispatcher

	clock          clock.Clock
	log            logger.Logger
	maxActive      int
	nearEnd        time.Duration
	key            string
	legacyDuration time.Duration
	newID          func() string
	onPersistError func(error)
	messages       Messages

	sweeping atomic.Bool
}

// New constructs a Registry. store and dispatcher may be nil, which disables
// persistence and notification delivery respectively.
func New(store Store, dispatcher Dispatcher, opts ...Option) *Registry {
	r := &Registry{
		store:          store,
		dispatcher:     dispatcher,
		clock:          clock.Real(),
		log:            logger.Named("timer"),
		maxActive:      DefaultMaxActive,
		nearEnd:        DefaultNearEndThreshold,
		key:            DefaultStoreKey,
		legacyDuration: DefaultLegacyDefaultDuration,
		newID:          uuid.NewString,
		messages:       DefaultMessages(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxActive returns the configured cap.
func (r *Registry) MaxActive() int { return r.maxActive }

// NearEndThreshold returns the configured near-end window.
func (r *Registry) NearEndThreshold() time.Duration { return r.nearEnd }

// Load replaces the in-memory set with the stored document. Records in older
// shapes are migrated, records that already ended are dropped, and the store
// is rewritten in the current shape when either happened.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	data, found, err := r.store.Read(ctx, r.key)
	if err != nil {
		err = fmt.Errorf("%w: load %q: %w", ErrPersistence, r.key, err)
		r.reportPersistError(ctx, err)
		return err
	}
	if !found {
		return nil
	}

	dec, err := decoder{legacyDuration: r.legacyDuration, newID: r.newID}.decode(data)
	if err != nil {
		r.log.Error(ctx, "stored timers unreadable, starting empty", logger.Error(err))
		return err
	}
	for _, reason := range dec.discarded {
		r.log.Warn(ctx, "discarding stored timer", logger.String("reason", reason))
	}

	now := r.clock.Now()
	kept := make([]Entry, 0, len(dec.entries))
	seen := make(map[string]bool, len(dec.entries))
	dropped := len(dec.discarded)
	for _, e := range dec.entries {
		switch {
		case !e.EndTime.After(now):
			dropped++
		case seen[e.ID]:
			r.log.Warn(ctx, "discarding duplicate stored timer", logger.String("id", e.ID))
			dropped++
		case len(kept) >= r.maxActive:
			r.log.Warn(ctx, "discarding stored timer above capacity", logger.String("id", e.ID))
			dropped++
		default:
			seen[e.ID] = true
			kept = append(kept, e)
		}
	}

	r.mu.Lock()
	r.entries = kept
	r.mu.Unlock()
	metrics.UpdateTimersActive(len(kept))

	r.log.Info(ctx, "timers loaded",
		logger.Int("active", len(kept)),
		logger.Int("dropped", dropped),
		logger.Bool("migrated", dec.migrated),
	)
	if dec.migrated || dropped > 0 {
		r.persist(ctx)
	}
	return nil
}

// Create starts a countdown of totalMinutes from now. An empty label gets a
// default derived from the volume and duration.
func (r *Registry) Create(ctx context.Context, label, volumeMl string, totalMinutes float64) (Entry, error) {
	if math.IsNaN(totalMinutes) || math.IsInf(totalMinutes, 0) || totalMinutes <= 0 {
		return Entry{}, ErrInvalidDuration
	}
	if label == "" {
		label = rate.DefaultLabel(volumeMl, totalMinutes)
	}

	r.mu.Lock()
	if len(r.entries) >= r.maxActive {
		r.mu.Unlock()
		metrics.RecordTimerRejected()
		return Entry{}, ErrCapacityExceeded
	}
	now := r.clock.Now()
	e := Entry{
		ID:        r.newID(),
		Label:     label,
		VolumeMl:  volumeMl,
		StartTime: now,
		EndTime:   now.Add(time.Duration(math.Round(totalMinutes * float64(time.Minute)))),
	}
	r.entries = append(r.entries, e)
	active := len(r.entries)
	r.mu.Unlock()

	metrics.RecordTimerCreated()
	metrics.UpdateTimersActive(active)
	r.log.Info(ctx, "timer created",
		logger.String("id", e.ID),
		logger.String("label", e.Label),
		logger.Time("end", e.EndTime),
	)
	r.persist(ctx)
	return e, nil
}

// Delete removes the countdown with id. It reports whether anything was
// removed; deleting an unknown id is a no-op and does not touch the store.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.entries = append(r.entries[:idx:idx], r.entries[idx+1:]...)
	active := len(r.entries)
	r.mu.Unlock()

	metrics.RecordTimerDeleted()
	metrics.UpdateTimersActive(active)
	r.log.Info(ctx, "timer deleted", logger.String("id", id))
	r.persist(ctx)
	return true
}

// Sweep evaluates every countdown against now: it flags and announces
// countdowns entering the near-end window, announces and removes warned
// countdowns that ended, and silently removes unwarned ones that ended.
// At most one sweep runs at a time; an overlapping call returns immediately
// with Skipped set.
func (r *Registry) Sweep(ctx context.Context, now time.Time) SweepResult {
	if !r.sweeping.CompareAndSwap(false, true) {
		metrics.RecordSweepSkipped()
		return SweepResult{Skipped: true}
	}
	defer r.sweeping.Store(false)
	start := time.Now()

	var res SweepResult
	var notes []model.Notification

	r.mu.Lock()
	kept := r.entries[:0:0]
	for _, e := range r.entries {
		remaining := e.EndTime.Sub(now)
		if !e.WarnedNearEnd && remaining > 0 && remaining <= r.nearEnd {
			e.WarnedNearEnd = true
			res.NearEnd = append(res.NearEnd, e.ID)
			notes = append(notes, r.notification(e, model.KindNearEnd, now))
		}
		if remaining <= 0 {
			if e.WarnedNearEnd {
				res.Completed = append(res.Completed, e.ID)
				notes = append(notes, r.notification(e, model.KindCompleted, now))
			}
			res.Expired = append(res.Expired, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	changed := len(res.NearEnd) > 0 || len(res.Expired) > 0
	if changed {
		r.entries = kept
	}
	active := len(r.entries)
	r.mu.Unlock()

	if changed {
		r.persist(ctx)
		res.Persisted = true
	}
	for _, n := range notes {
		r.dispatch(ctx, n)
	}

	metrics.UpdateTimersActive(active)
	metrics.RecordTimersExpired(len(res.Expired))
	metrics.RecordSweep(time.Since(start))
	if changed {
		r.log.Debug(ctx, "sweep changed timers",
			logger.Int("near_end", len(res.NearEnd)),
			logger.Int("completed", len(res.Completed)),
			logger.Int("expired", len(res.Expired)),
		)
	}
	return res
}

// List returns a copy of the active countdowns in creation order.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get returns the countdown with id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := r.indexLocked(id); idx >= 0 {
		return r.entries[idx], true
	}
	return Entry{}, false
}

// Len returns the number of active countdowns.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) indexLocked(id string) int {
	for i, e := range r.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) notification(e Entry, kind model.NotificationKind, now time.Time) model.Notification {
	n := model.Notification{
		Kind:    kind,
		EntryID: e.ID,
		Tag:     model.Tag(e.ID, kind),
		At:      now,
	}
	switch kind {
	case model.KindNearEnd:
		n.Title, n.Body = r.messages.NearEnd(e, r.nearEnd)
	case model.KindCompleted:
		n.Title, n.Body = r.messages.Completed(e)
		n.RequireInteraction = true
	}
	return n
}

// persist writes the current snapshot. Failures are reported, never returned;
// the in-memory state stays authoritative.
func (r *Registry) persist(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	data, err := encode(r.entries)
	r.mu.Unlock()
	if err != nil {
		r.reportPersistError(ctx, fmt.Errorf("%w: encode: %w", ErrPersistence, err))
		return
	}

	err = func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("store panicked: %v", p)
			}
		}()
		return r.store.Write(ctx, r.key, data)
	}()
	if err != nil {
		r.reportPersistError(ctx, fmt.Errorf("%w: write %q: %w", ErrPersistence, r.key, err))
	}
}

func (r *Registry) reportPersistError(ctx context.Context, err error) {
	r.log.Error(ctx, "timer persistence failed", logger.Error(err))
	if r.onPersistError != nil {
		r.onPersistError(err)
	}
}

func (r *Registry) dispatch(ctx context.Context, n model.Notification) {
	if r.dispatcher == nil {
		return
	}
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("dispatcher panicked: %v", p)
			}
		}()
		return r.dispatcher.Notify(ctx, n)
	}()
	if err != nil {
		r.log.Warn(ctx, "notification not delivered",
			logger.String("tag", n.Tag),
			logger.Error(err),
		)
		return
	}
	r.log.Debug(ctx, "notification dispatched", logger.String("tag", n.Tag))
}
