package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/dripcue/internal/adapters/store"
	service "github.com/okian/dripcue/internal/app"
	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/timer"
	"github.com/okian/dripcue/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var epoch = time.UnixMilli(1_791_000_000_000)

type sink struct {
	mu     sync.Mutex
	pulses int
}

func (s *sink) EmitPulse() {
	s.mu.Lock()
	s.pulses++
	s.mu.Unlock()
}

func (s *sink) EmitHaptic() {}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulses
}

type inbox struct {
	mu    sync.Mutex
	notes []model.Notification
	hook  func()
}

func (i *inbox) Notify(_ context.Context, n model.Notification) error {
	i.mu.Lock()
	i.notes = append(i.notes, n)
	hook := i.hook
	i.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (i *inbox) kinds() []model.NotificationKind {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]model.NotificationKind, 0, len(i.notes))
	for _, n := range i.notes {
		out = append(out, n.Kind)
	}
	return out
}

type fixture struct {
	clock *clock.Fake
	store *store.Memory
	inbox *inbox
	sink  *sink
}

func newFixture() *fixture {
	return &fixture{
		clock: clock.NewFake(epoch),
		store: store.NewMemory(),
		inbox: &inbox{},
		sink:  &sink{},
	}
}

func (f *fixture) service(opts ...service.Option) *service.Service {
	reg := timer.New(f.store, f.inbox, timer.WithClock(f.clock))
	sched := beat.New(f.sink, beat.WithClock(f.clock))
	return service.New(reg, sched, append([]service.Option{service.WithClock(f.clock)}, opts...)...)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given timers persisted by an earlier run", t, func() {
		f := newFixture()
		earlier := f.service()
		_, err := earlier.StartTimerFromCalculation(ctx, rate.Prescription{VolumeMl: 250, Hours: 1, DropFactor: 20}, "Night bag")
		So(err, ShouldBeNil)

		Convey("When a new service starts on the same store", func() {
			svc := f.service()
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the countdown is restored", func() {
				timers, now := svc.Timers()
				So(timers, ShouldHaveLength, 1)
				So(timers[0].Label, ShouldEqual, "Night bag")
				So(now, ShouldEqual, epoch)
				st := svc.GetStats()
				So(st.Started, ShouldBeTrue)
				So(st.ActiveTimers, ShouldEqual, 1)
				So(st.MaxActiveTimers, ShouldEqual, timer.DefaultMaxActive)
			})

			Convey("Then starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a started service", t, func() {
		f := newFixture()
		var redraws int
		svc := f.service(service.WithRedraw(func([]timer.Entry, time.Time) { redraws++ }))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.StartMetronomeInterval(500), ShouldBeNil)

		Convey("When it is stopped", func() {
			svc.Stop()
			before := f.sink.count()
			f.clock.Advance(time.Minute)

			Convey("Then no driver runs afterwards", func() {
				So(svc.GetStats().Started, ShouldBeFalse)
				So(svc.GetStats().Metronome.Running, ShouldBeFalse)
				So(f.sink.count(), ShouldEqual, before)
				So(redraws, ShouldEqual, 0)
			})
		})
	})
}

func TestServiceSweepDriver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a six minute countdown", t, func() {
		f := newFixture()
		var results []timer.SweepResult
		svc := f.service(service.WithSweepObserver(func(r timer.SweepResult) { results = append(results, r) }))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		e, err := svc.StartTimerFromCalculation(ctx, rate.Prescription{VolumeMl: 100, Minutes: 6}, "")
		So(err, ShouldBeNil)
		So(e.Label, ShouldEqual, "Drip 100 mL (6 min)")

		Convey("When 59 seconds pass", func() {
			f.clock.Advance(59 * time.Second)

			Convey("Then nothing has been announced yet", func() {
				So(f.inbox.kinds(), ShouldBeEmpty)
				So(results, ShouldHaveLength, 6) // start + 5 periodic
			})
		})

		Convey("When one minute passes", func() {
			f.clock.Advance(time.Minute)

			Convey("Then the near-end warning goes out on the sweep at exactly five minutes left", func() {
				So(f.inbox.kinds(), ShouldResemble, []model.NotificationKind{model.KindNearEnd})
				got, _ := svc.Registry().Get(e.ID)
				So(got.WarnedNearEnd, ShouldBeTrue)
			})
		})

		Convey("When six minutes pass", func() {
			f.clock.Advance(6 * time.Minute)

			Convey("Then it completes and is removed", func() {
				So(f.inbox.kinds(), ShouldResemble, []model.NotificationKind{model.KindNearEnd, model.KindCompleted})
				So(svc.GetStats().ActiveTimers, ShouldEqual, 0)
				So(svc.GetStats().LastSweep, ShouldEqual, epoch.Add(6*time.Minute))
			})
		})
	})

	Convey("Given a manual sweep requested while a sweep is delivering", t, func() {
		f := newFixture()
		svc := f.service()
		var nested timer.SweepResult
		f.inbox.hook = func() { nested = svc.SweepNow(ctx) }
		_, err := svc.StartTimerFromCalculation(ctx, rate.Prescription{VolumeMl: 100, Minutes: 3}, "short")
		So(err, ShouldBeNil)

		Convey("Then the nested sweep is skipped", func() {
			res := svc.SweepNow(ctx)
			So(res.NearEnd, ShouldHaveLength, 1)
			So(nested.Skipped, ShouldBeTrue)
		})
	})
}

func TestServiceRedrawDriver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a redraw callback", t, func() {
		f := newFixture()
		var (
			frames []time.Time
			sizes  []int
		)
		svc := f.service(
			service.WithRedrawPeriod(time.Second),
			service.WithRedraw(func(entries []timer.Entry, now time.Time) {
				frames = append(frames, now)
				sizes = append(sizes, len(entries))
			}),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		_, err := svc.StartTimerFromCalculation(ctx, rate.Prescription{VolumeMl: 100, Hours: 1}, "")
		So(err, ShouldBeNil)

		Convey("When three seconds pass", func() {
			before, _, _ := f.store.Read(ctx, timer.DefaultStoreKey)
			f.clock.Advance(3 * time.Second)
			after, _, _ := f.store.Read(ctx, timer.DefaultStoreKey)

			Convey("Then it is called once a second with a snapshot and nothing is written", func() {
				So(frames, ShouldResemble, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second), epoch.Add(3 * time.Second)})
				So(sizes, ShouldResemble, []int{1, 1, 1})
				So(string(after), ShouldEqual, string(before))
			})
		})
	})
}

func TestServiceMetronome(t *testing.T) {
	Convey("Given a service", t, func() {
		f := newFixture()
		svc := f.service()

		Convey("When the metronome starts from 500 mL over 4 hours on a 20 drop set", func() {
			c, err := svc.StartMetronome(rate.Prescription{VolumeMl: 500, Hours: 4, DropFactor: 20})
			So(err, ShouldBeNil)
			f.clock.Advance(3 * 1440 * time.Millisecond)

			Convey("Then it beats every 1.44 seconds starting immediately", func() {
				So(c.IntervalMs, ShouldAlmostEqual, 1440, 1e-9)
				So(f.sink.count(), ShouldEqual, 4)
				So(svc.GetStats().Metronome.IntervalMs, ShouldAlmostEqual, 1440, 1e-9)
			})

			Convey("Then it can be retuned and stopped", func() {
				So(svc.SetMetronomeInterval(1000), ShouldBeNil)
				svc.SetSoundEnabled(false)
				svc.SetVibrationEnabled(true)
				So(svc.Scheduler().IntervalMs(), ShouldEqual, 1000)
				svc.StopMetronome()
				So(svc.Scheduler().Running(), ShouldBeFalse)
			})
		})

		Convey("When the prescription has no cadence", func() {
			_, err := svc.StartMetronome(rate.Prescription{VolumeMl: 500, DropFactor: 20})

			Convey("Then nothing starts", func() {
				So(errors.Is(err, service.ErrInvalidPrescription), ShouldBeTrue)
				So(svc.Scheduler().Running(), ShouldBeFalse)
			})
		})

		Convey("Calculate is the pure calculator", func() {
			_, ok := svc.Calculate(rate.Prescription{VolumeMl: 1000, Hours: 8, DropFactor: 60})
			So(ok, ShouldBeTrue)
			_, ok = svc.Calculate(rate.Prescription{VolumeMl: 1000, Hours: 8, DropFactor: 15})
			So(ok, ShouldBeFalse)
		})
	})
}

func TestServiceTimers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service at capacity", t, func() {
		f := newFixture()
		svc := f.service()
		p := rate.Prescription{VolumeMl: 500, Hours: 1, DropFactor: 20}
		for i := 0; i < timer.DefaultMaxActive; i++ {
			_, err := svc.StartTimerFromCalculation(ctx, p, "")
			So(err, ShouldBeNil)
		}

		Convey("Then another countdown is refused without evicting any", func() {
			_, err := svc.StartTimerFromCalculation(ctx, p, "")
			So(errors.Is(err, timer.ErrCapacityExceeded), ShouldBeTrue)
			timers, _ := svc.Timers()
			So(timers, ShouldHaveLength, timer.DefaultMaxActive)
		})

		Convey("Then deleting one frees a slot", func() {
			timers, _ := svc.Timers()
			So(svc.DeleteTimer(ctx, timers[0].ID), ShouldBeTrue)
			So(svc.DeleteTimer(ctx, timers[0].ID), ShouldBeFalse)
			_, err := svc.StartTimerFromCalculation(ctx, p, "")
			So(err, ShouldBeNil)
		})
	})

	Convey("Given an invalid calculation", t, func() {
		svc := newFixture().service()

		Convey("Then no countdown starts", func() {
			_, err := svc.StartTimerFromCalculation(ctx, rate.Prescription{VolumeMl: 0, Hours: 1}, "")
			So(errors.Is(err, service.ErrInvalidPrescription), ShouldBeTrue)
			So(svc.MaxActiveTimers(), ShouldEqual, 7)
		})
	})
}
