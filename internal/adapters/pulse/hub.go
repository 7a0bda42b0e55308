package pulse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/pkg/logger"
	"github.com/okian/dripcue/pkg/metrics"
)

const (
	clientBuffer = 16
	writeTimeout = time.Second
)

// Event types sent to browsers.
const (
	EventPulse  = "pulse"
	EventHaptic = "haptic"
	EventVisual = "visual"
)

// Event is one WebSocket message.
type Event struct {
	Type string `json:"type"`
	On   *bool  `json:"on,omitempty"`
	At   int64  `json:"at"`
}

var (
	_ beat.PulseSink  = (*Hub)(nil)
	_ beat.VisualSink = (*Hub)(nil)
	_ http.Handler    = (*Hub)(nil)
)

// Hub broadcasts beats to connected WebSocket clients so a browser can play
// the sound, vibrate and flash. Clients that fall behind are disconnected
// rather than slowing the metronome down.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	now     func() time.Time
	log     logger.Logger
}

type client struct {
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		now:     time.Now,
		log:     logger.Named("pulse-hub"),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) EmitPulse()  { h.broadcast(Event{Type: EventPulse}) }
func (h *Hub) EmitHaptic() { h.broadcast(Event{Type: EventHaptic}) }

func (h *Hub) SetPulsing(on bool) {
	h.broadcast(Event{Type: EventVisual, On: &on})
}

func (h *Hub) broadcast(ev Event) {
	ev.At = h.now().UnixMilli()
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			c.close()
			metrics.RecordPulseSinkError("hub", "slow_client")
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.CloseNow()

	c := &client{send: make(chan []byte, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	// clients never send; CloseRead handles control frames and cancels
	// ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case msg := <-c.send:
			if err := write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
