package pulse

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHubSlowClient(t *testing.T) {
	Convey("Given a client whose buffer is full", t, func() {
		h := NewHub()
		slow := &client{send: make(chan []byte, 1), done: make(chan struct{})}
		fast := &client{send: make(chan []byte, 4), done: make(chan struct{})}
		h.clients[slow] = struct{}{}
		h.clients[fast] = struct{}{}

		Convey("When two beats are broadcast", func() {
			h.EmitPulse()
			h.EmitPulse()

			Convey("Then the slow client is dropped and the fast one keeps both", func() {
				So(h.Clients(), ShouldEqual, 1)
				_, open := <-slow.done
				So(open, ShouldBeFalse)
				So(len(fast.send), ShouldEqual, 2)
			})
		})
	})
}
