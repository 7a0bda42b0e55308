package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the dripcue namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.timersCreated.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "dripcue_core_timers_created_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("ward"),
				WithSubsystem("drip"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "ward")
				So(manager.subsystem, ShouldEqual, "drip")
				So(manager.metricPrefix, ShouldEqual, "test")
				So(manager.enabled, ShouldBeFalse)
				So(manager.refreshInterval, ShouldEqual, 3*time.Second)
				So(manager.customLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When options carry invalid names", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("bad-name"),
				WithCustomLabels(map[string]string{"bad-label": "x"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "dripcue")
				So(manager.customLabels, ShouldBeEmpty)
				So(ValidateName("bad-name"), ShouldNotBeNil)
				So(ValidateName("good_name"), ShouldBeNil)
			})
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording timer metrics", func() {
			before := testutil.ToFloat64(globalManager.timersCreated)
			RecordTimerCreated()
			UpdateTimersActive(4)

			Convey("Then the collectors change", func() {
				So(testutil.ToFloat64(globalManager.timersCreated), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.timersActive), ShouldEqual, 4)
			})
		})

		Convey("When recording scheduler state", func() {
			UpdateSchedulerState(true, 720)

			Convey("Then running and interval are exposed", func() {
				So(testutil.ToFloat64(globalManager.schedulerRunning), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.schedulerInterval), ShouldEqual, 720)
			})
			UpdateSchedulerState(false, 0)
		})

		Convey("When recording labelled metrics", func() {
			So(func() {
				RecordBeatFired(1.5)
				RecordBeatsScheduled(3)
				RecordPulseSinkError("tone", "panic")
				RecordTimerRejected()
				RecordTimerDeleted()
				RecordTimersExpired(2)
				RecordTimersExpired(0)
				RecordSweep(2 * time.Millisecond)
				RecordSweepSkipped()
				RecordNotification("near-end", "log", OutcomeOK)
				UpdateNotifyQueue(1, 64)
				RecordPersistence("memory", "write", OutcomeOK, time.Millisecond)
				RecordHTTPRequest("/timers", "GET", "200")
				RecordHTTPRequestDuration("/timers", "GET", "200", 1.0)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.notifications.WithLabelValues("near-end", "log", OutcomeOK)), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("Then the registry and refresh interval are exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
