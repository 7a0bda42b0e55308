package pulse_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/okian/dripcue/internal/adapters/pulse"
	. "github.com/smartystreets/goconvey/convey"
)

func dial(ctx context.Context, url string) *websocket.Conn {
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"), nil)
	So(err, ShouldBeNil)
	return conn
}

func waitClients(h *pulse.Hub, n int) {
	for i := 0; i < 200 && h.Clients() != n; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	So(h.Clients(), ShouldEqual, n)
}

func readEvent(ctx context.Context, conn *websocket.Conn) pulse.Event {
	_, data, err := conn.Read(ctx)
	So(err, ShouldBeNil)
	var ev pulse.Event
	So(json.Unmarshal(data, &ev), ShouldBeNil)
	return ev
}

func TestHub(t *testing.T) {
	Convey("Given a hub with one browser connected", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub := pulse.NewHub()
		srv := httptest.NewServer(hub)
		defer srv.Close()
		conn := dial(ctx, srv.URL)
		defer conn.CloseNow()
		waitClients(hub, 1)

		Convey("When a beat is emitted", func() {
			hub.EmitPulse()
			hub.EmitHaptic()
			hub.SetPulsing(true)

			Convey("Then the browser receives each event in order", func() {
				So(readEvent(ctx, conn).Type, ShouldEqual, pulse.EventPulse)
				So(readEvent(ctx, conn).Type, ShouldEqual, pulse.EventHaptic)
				ev := readEvent(ctx, conn)
				So(ev.Type, ShouldEqual, pulse.EventVisual)
				So(ev.On, ShouldNotBeNil)
				So(*ev.On, ShouldBeTrue)
				So(ev.At, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the browser disconnects", func() {
			_ = conn.Close(websocket.StatusNormalClosure, "")

			Convey("Then the hub forgets it", func() {
				waitClients(hub, 0)
				So(hub.EmitPulse, ShouldNotPanic)
			})
		})
	})
}

type countingSink struct {
	pulses, haptics int
	visual          []bool
	unlockErr       error
	panics          bool
}

func (c *countingSink) EmitPulse() {
	if c.panics {
		panic("boom")
	}
	c.pulses++
}
func (c *countingSink) EmitHaptic()        { c.haptics++ }
func (c *countingSink) SetPulsing(on bool) { c.visual = append(c.visual, on) }
func (c *countingSink) Unlock() error      { return c.unlockErr }

func TestMulti(t *testing.T) {
	Convey("Given a fan-out of sinks", t, func() {
		var out bytes.Buffer
		a := &countingSink{panics: true}
		b := &countingSink{unlockErr: errors.New("no device")}
		m := pulse.Multi{a, pulse.NewBell(&out), b}

		Convey("When a beat is emitted", func() {
			m.EmitPulse()
			m.EmitHaptic()
			m.SetPulsing(true)

			Convey("Then a panicking member does not stop the rest", func() {
				So(b.pulses, ShouldEqual, 1)
				So(out.String(), ShouldEqual, "\a")
				So(a.haptics, ShouldEqual, 1)
				So(b.visual, ShouldResemble, []bool{true})
			})
		})

		Convey("Then unlock failures are joined", func() {
			err := m.Unlock()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no device")
		})
	})
}
