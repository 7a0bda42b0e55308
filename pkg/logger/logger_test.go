package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with the default writer", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Initialized(), ShouldBeTrue)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with a nil writer", func() {
			err := InitWithWriter(nil, false)

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, true), ShouldBeNil)
		SetLevel(slog.LevelInfo)
		ctx := context.Background()

		Convey("When logging through a named child with fields", func() {
			Named("registry").With(String("key", "drip")).Info(ctx, "timer created",
				String("id", "t-1"), Int("active", 3), Error(errors.New("boom")))

			Convey("Then the record carries the component, fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, `"msg":"timer created"`)
				So(out, ShouldContainSubstring, `"component":"registry"`)
				So(out, ShouldContainSubstring, `"key":"drip"`)
				So(out, ShouldContainSubstring, `"active":3`)
				So(out, ShouldContainSubstring, `"source":"`)
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			Get().Debug(ctx, "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When nesting names", func() {
			Get().Named("app").Named("sweep").Warn(ctx, "skipped")

			Convey("Then names are dot-joined", func() {
				So(buf.String(), ShouldContainSubstring, `"component":"app.sweep"`)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestNop(t *testing.T) {
	Convey("Given a Nop logger", t, func() {
		l := Nop()

		Convey("Then every method is safe to call", func() {
			So(func() {
				l.Debug(context.Background(), "x")
				l.Info(context.Background(), "x")
				l.Warn(context.Background(), "x")
				l.Error(context.Background(), "x")
				l.Named("n").With(Bool("b", true)).Info(context.Background(), "x")
			}, ShouldNotPanic)
		})
	})
}
