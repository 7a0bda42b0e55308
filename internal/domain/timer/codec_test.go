package timer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/dripcue/internal/adapters/store"
	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/timer"
	. "github.com/smartystreets/goconvey/convey"
)

type brokenReader struct{ *store.Memory }

func (brokenReader) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("%w: connection refused", store.ErrRead)
}

func seeded(doc string) *countingStore {
	st := &countingStore{Memory: store.NewMemory()}
	So(st.Memory.Write(context.Background(), timer.DefaultStoreKey, []byte(doc)), ShouldBeNil)
	return st
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	now := epoch
	ms := func(d time.Duration) int64 { return now.Add(d).UnixMilli() }

	Convey("Given a document in the current shape", t, func() {
		st := seeded(fmt.Sprintf(`{"version":2,"timers":[
			{"id":"a","label":"Bag A","volumeMl":"500","startTime":%d,"endTime":%d,"warnedNearEnd":true},
			{"id":"b","label":"Bag B","volumeMl":"250","startTime":%d,"endTime":%d,"warnedNearEnd":false}]}`,
			ms(-time.Hour), ms(3*time.Minute), ms(-time.Minute), ms(time.Hour)))
		r := timer.New(st, nil, timer.WithClock(clock.NewFake(now)))

		Convey("When it is loaded", func() {
			So(r.Load(ctx), ShouldBeNil)

			Convey("Then entries come back unchanged and the store is not rewritten", func() {
				list := r.List()
				So(list, ShouldHaveLength, 2)
				So(list[0].ID, ShouldEqual, "a")
				So(list[0].WarnedNearEnd, ShouldBeTrue)
				So(list[0].StartTime, ShouldEqual, now.Add(-time.Hour))
				So(list[1].Label, ShouldEqual, "Bag B")
				So(st.writeCount(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a legacy array without start times", t, func() {
		created := now.Add(-40 * time.Minute).UnixMilli()
		st := seeded(fmt.Sprintf(`[
			{"id":"%d","name":"Night bag","volume":"500","endTime":%d,"notified5min":false},
			{"id":"manual","name":"Other","volume":100,"endTime":%d,"notified5min":true},
			{"name":"No id","volume":"50","endTime":%d},
			{"id":"gone","name":"Done","volume":"20","endTime":%d,"notified5min":true},
			{"id":"broken","name":"No end","volume":"20"}]`,
			created, ms(20*time.Minute), ms(2*time.Minute), ms(time.Hour), ms(-time.Minute)))
		r := timer.New(st, nil,
			timer.WithClock(clock.NewFake(now)),
			timer.WithIDGenerator(func() string { return "generated" }),
		)

		Convey("When it is loaded", func() {
			So(r.Load(ctx), ShouldBeNil)
			list := r.List()

			Convey("Then records are migrated one by one", func() {
				So(list, ShouldHaveLength, 3)

				So(list[0].Label, ShouldEqual, "Night bag")
				So(list[0].StartTime.UnixMilli(), ShouldEqual, created)
				So(list[0].EndTime, ShouldEqual, now.Add(20*time.Minute))

				So(list[1].VolumeMl, ShouldEqual, "100")
				So(list[1].WarnedNearEnd, ShouldBeTrue)
				So(list[1].StartTime, ShouldEqual, list[1].EndTime.Add(-timer.DefaultLegacyDefaultDuration))

				So(list[2].ID, ShouldEqual, "generated")
			})

			Convey("Then the store is rewritten in the current shape", func() {
				So(st.writeCount(), ShouldEqual, 1)
				doc := readDoc(st)
				So(doc.Version, ShouldEqual, 2)
				So(doc.Timers, ShouldHaveLength, 3)
				So(doc.Timers[0].StartTime, ShouldEqual, created)
				So(doc.Timers[1].VolumeMl, ShouldEqual, "100")
			})
		})
	})

	Convey("Given a legacy array with start times", t, func() {
		st := seeded(fmt.Sprintf(`[{"id":"x","name":"Bag","volume":"500","startTime":%d,"endTime":%d,"notified5min":false}]`,
			ms(-10*time.Minute), ms(50*time.Minute)))
		r := timer.New(st, nil, timer.WithClock(clock.NewFake(now)))

		Convey("When it is loaded", func() {
			So(r.Load(ctx), ShouldBeNil)

			Convey("Then the stored start time is kept", func() {
				e, ok := r.Get("x")
				So(ok, ShouldBeTrue)
				So(e.StartTime, ShouldEqual, now.Add(-10*time.Minute))
				So(e.Duration(), ShouldEqual, time.Hour)
				So(st.writeCount(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a document with expired entries only", t, func() {
		st := seeded(fmt.Sprintf(`{"version":2,"timers":[{"id":"a","label":"x","volumeMl":"1","startTime":%d,"endTime":%d}]}`,
			ms(-2*time.Hour), ms(-time.Hour)))
		r := timer.New(st, nil, timer.WithClock(clock.NewFake(now)))

		Convey("When it is loaded", func() {
			So(r.Load(ctx), ShouldBeNil)

			Convey("Then they are dropped and the pruned document written back", func() {
				So(r.Len(), ShouldEqual, 0)
				So(readDoc(st).Timers, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a document written by a newer version", t, func() {
		st := seeded(`{"version":9,"timers":[]}`)
		r := timer.New(st, nil, timer.WithClock(clock.NewFake(now)))

		Convey("Then loading refuses it and leaves it alone", func() {
			So(errors.Is(r.Load(ctx), timer.ErrUnsupportedVersion), ShouldBeTrue)
			So(st.writeCount(), ShouldEqual, 0)
		})
	})

	Convey("Given garbage in the store", t, func() {
		st := seeded(`"hello"`)
		r := timer.New(st, nil, timer.WithClock(clock.NewFake(now)))

		Convey("Then loading reports a malformed document", func() {
			So(errors.Is(r.Load(ctx), timer.ErrMalformedDocument), ShouldBeTrue)
			So(r.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a store that cannot be read", t, func() {
		var reported error
		r := timer.New(brokenReader{store.NewMemory()}, nil,
			timer.WithOnPersistError(func(err error) { reported = err }))

		Convey("Then the failure is wrapped and reported", func() {
			err := r.Load(ctx)
			So(errors.Is(err, timer.ErrPersistence), ShouldBeTrue)
			So(errors.Is(err, store.ErrRead), ShouldBeTrue)
			So(reported, ShouldEqual, err)
		})
	})

	Convey("Given an empty store", t, func() {
		r := timer.New(store.NewMemory(), nil)

		Convey("Then loading is a no-op", func() {
			So(r.Load(ctx), ShouldBeNil)
			So(r.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given two registries sharing a store", t, func() {
		fc := clock.NewFake(now)
		st := store.NewMemory()
		a := timer.New(st, nil, timer.WithClock(fc))
		e, err := a.Create(ctx, "Bag", "500", 90)
		So(err, ShouldBeNil)

		Convey("When the second one loads", func() {
			b := timer.New(st, nil, timer.WithClock(fc))
			So(b.Load(ctx), ShouldBeNil)

			Convey("Then it sees the same countdown", func() {
				got, ok := b.Get(e.ID)
				So(ok, ShouldBeTrue)
				So(got, ShouldResemble, e)
			})
		})
	})
}
