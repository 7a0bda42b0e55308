package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/dripcue/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the duration helpers convert units", func() {
			convey.So(cfg.NearEndThreshold(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.SweepPeriod(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.RedrawPeriod(), convey.ShouldEqual, time.Second)
			convey.So(cfg.LegacyDefaultDuration(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.LookAhead(), convey.ShouldEqual, 100*time.Millisecond)
			convey.So(cfg.FramePeriod(), convey.ShouldEqual, 16*time.Millisecond)
			convey.So(cfg.ToneDuration(), convey.ShouldEqual, 100*time.Millisecond)
			convey.So(cfg.NotifyWebhookTimeout(), convey.ShouldEqual, 5*time.Second)
		})

		convey.Convey("When the store backend is unknown", func() {
			cfg.StoreBackend = "etcd"

			convey.Convey("Then it is rejected", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "etcd")
			})
		})

		convey.Convey("When webhook delivery has no url", func() {
			cfg.NotifyBackends = []string{"webhook"}

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When mqtt delivery has a broker", func() {
			cfg.NotifyBackends = []string{"mqtt"}
			cfg.NotifyMQTTBroker = "tcp://localhost:1883"

			convey.Convey("Then it validates", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the notify backend is unknown", func() {
			cfg.NotifyBackends = []string{"pager"}

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the frame period is not shorter than the look-ahead", func() {
			cfg.FramePeriodMS = cfg.LookAheadWindowMS

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
