package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"

	"github.com/okian/dripcue/internal/adapters/pulse"
	"github.com/okian/dripcue/internal/config"
	"github.com/okian/dripcue/internal/domain/timer"
)

// run executes the CLI with args and returns what it wrote and the exit
// code it asked for.
func run(args ...string) (string, int) {
	var out bytes.Buffer
	code := 0
	prevExiter, prevErr := cli.OsExiter, cli.ErrWriter
	cli.OsExiter = func(c int) { code = c }
	cli.ErrWriter = io.Discard
	defer func() { cli.OsExiter, cli.ErrWriter = prevExiter, prevErr }()

	app := newApp()
	app.Writer = &out
	if err := app.Run(append([]string{"dripcue"}, args...)); err != nil && code == 0 {
		code = 1
	}
	return out.String(), code
}

func TestCommandTree(t *testing.T) {
	convey.Convey("Given the command tree", t, func() {
		app := newApp()

		convey.Convey("Then every command is registered", func() {
			for _, name := range []string{"serve", "calc", "metronome", "timers"} {
				convey.So(app.Command(name), convey.ShouldNotBeNil)
			}
			timers := app.Command("timers")
			var subs []string
			for _, s := range timers.Subcommands {
				subs = append(subs, s.Name)
			}
			convey.So(subs, convey.ShouldResemble, []string{"add", "list", "delete", "watch"})
		})
	})
}

func TestCalcCommand(t *testing.T) {
	convey.Convey("Given the calc command", t, func() {
		convey.Convey("When 500 mL over 4 h on a 20 drop set is computed", func() {
			out, code := run("calc", "--volume", "500", "--hours", "4")

			convey.Convey("Then the cadence is printed", func() {
				convey.So(code, convey.ShouldEqual, 0)
				convey.So(out, convey.ShouldContainSubstring, "42")
				convey.So(out, convey.ShouldContainSubstring, "1440 ms")
				convey.So(out, convey.ShouldContainSubstring, "Drip 500 mL (240 min)")
			})
		})

		convey.Convey("When the micro-drip set is used", func() {
			out, code := run("calc", "-v", "1000", "-H", "8", "-f", "60")

			convey.Convey("Then the rate follows the factor", func() {
				convey.So(code, convey.ShouldEqual, 0)
				convey.So(out, convey.ShouldContainSubstring, "125")
				convey.So(out, convey.ShouldContainSubstring, "480 ms")
			})
		})

		convey.Convey("When the duration is zero", func() {
			out, code := run("calc", "--volume", "500", "--hours", "0")

			convey.Convey("Then it exits with the invalid input code", func() {
				convey.So(code, convey.ShouldEqual, exitInvalidInput)
				convey.So(out, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the drop factor is unsupported", func() {
			_, code := run("calc", "--volume", "500", "--hours", "1", "--factor", "15")

			convey.Convey("Then it exits with the invalid input code", func() {
				convey.So(code, convey.ShouldEqual, exitInvalidInput)
			})
		})
	})
}

func TestTimersCommands(t *testing.T) {
	convey.Convey("Given a file store in a temp dir", t, func() {
		t.Setenv("DRIPCUE_STORE_BACKEND", "file")
		t.Setenv("DRIPCUE_STORE_DIR", t.TempDir())
		t.Setenv("DRIPCUE_LOG_LEVEL", "error")

		convey.Convey("When a countdown is added", func() {
			out, code := run("timers", "add", "--label", "Bag A", "--volume", "500", "--minutes", "90")
			convey.So(code, convey.ShouldEqual, 0)
			id := strings.Fields(out)[0]

			convey.Convey("Then a later invocation lists it", func() {
				list, code := run("timers", "list")
				convey.So(code, convey.ShouldEqual, 0)
				convey.So(list, convey.ShouldContainSubstring, id)
				convey.So(list, convey.ShouldContainSubstring, "Bag A")
				convey.So(list, convey.ShouldContainSubstring, "1 of 7 slots used")
			})

			convey.Convey("Then it can be deleted once", func() {
				del, _ := run("timers", "delete", id)
				convey.So(del, convey.ShouldContainSubstring, "deleted")
				again, _ := run("timers", "delete", id)
				convey.So(again, convey.ShouldContainSubstring, "no such countdown")
				list, _ := run("timers", "list")
				convey.So(list, convey.ShouldContainSubstring, "no active countdowns")
			})
		})

		convey.Convey("When the registry is full", func() {
			for i := 0; i < 7; i++ {
				_, code := run("timers", "add", "--volume", "100", "--hours", "1")
				convey.So(code, convey.ShouldEqual, 0)
			}
			_, code := run("timers", "add", "--volume", "100", "--hours", "1")

			convey.Convey("Then the eighth add is refused", func() {
				convey.So(code, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When delete has no id", func() {
			_, code := run("timers", "delete")

			convey.Convey("Then it is a usage error", func() {
				convey.So(code, convey.ShouldEqual, exitInvalidInput)
			})
		})
	})
}

func TestBarBoard(t *testing.T) {
	convey.Convey("Given a bar board", t, func() {
		p := mpb.New(mpb.WithOutput(io.Discard))
		board := newBarBoard(p)
		now := time.Now()
		a := timer.Entry{ID: "a", Label: "A", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Minute)}
		b := timer.Entry{ID: "b", Label: "B", StartTime: now, EndTime: now.Add(time.Hour)}

		convey.Convey("When two countdowns are drawn and one goes away", func() {
			board.redraw([]timer.Entry{a, b}, now)
			convey.So(board.bars, convey.ShouldHaveLength, 2)
			board.redraw([]timer.Entry{b}, now.Add(time.Second))

			convey.Convey("Then only the live bar is kept", func() {
				convey.So(board.bars, convey.ShouldHaveLength, 1)
				convey.So(board.bars, convey.ShouldContainKey, "b")
				board.close()
				p.Wait()
				convey.So(board.bars, convey.ShouldBeEmpty)
			})
		})
	})
}

func TestFormatRemaining(t *testing.T) {
	convey.Convey("Given remaining durations", t, func() {
		convey.So(formatRemaining(0), convey.ShouldEqual, "0:00")
		convey.So(formatRemaining(-time.Second), convey.ShouldEqual, "0:00")
		convey.So(formatRemaining(90*time.Second), convey.ShouldEqual, "1:30")
		convey.So(formatRemaining(time.Hour+2*time.Minute+3*time.Second), convey.ShouldEqual, "1:02:03")
		convey.So(formatRemaining(1499*time.Millisecond), convey.ShouldEqual, "0:01")
	})
}

func TestServeMux(t *testing.T) {
	convey.Convey("Given a fully wired service on a memory store", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.StoreBackend = config.StoreMemory
		hub := pulse.NewHub()

		w, err := wire(ctx, cfg, pulse.Multi{hub})
		convey.So(err, convey.ShouldBeNil)
		convey.So(w.start(ctx), convey.ShouldBeNil)
		defer func() { _ = w.close() }()

		srv := httptest.NewServer(newMux(ctx, w.svc, hub))
		defer srv.Close()

		convey.Convey("Then the console, docs and API are all mounted", func() {
			for path, want := range map[string]string{
				"/":             "/pulse",
				"/healthz":      "ok",
				"/openapi.yaml": "openapi",
				"/timers":       "maxActive",
			} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				body, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(string(body), convey.ShouldContainSubstring, want)
			}
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		convey.Convey("Then it returns once the context ends", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
