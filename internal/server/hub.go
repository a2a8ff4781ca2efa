package server

import (
	"context"
	"encoding/json"
	"net/http"

	"chart-feed/internal/metrics"
	"chart-feed/internal/stream"
	"chart-feed/internal/surface"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StatusFrame mirrors a feed's connection status to websocket clients.
type StatusFrame struct {
	Type   string        `json:"type"`
	Feed   string        `json:"feed"`
	Status stream.Status `json:"status"`
}

type outbound struct {
	// key marks frames that replace the retained snapshot for a feed,
	// so late-joining clients catch up without waiting for the next tick.
	key  string
	data []byte
	drop bool
}

// Hub fans frames out to websocket clients. A client that cannot keep up
// with the broadcast rate is dropped rather than allowed to stall the hub.
type Hub struct {
	log        *zap.Logger
	metrics    *metrics.Metrics
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	snapshots  map[string][]byte
	// done is closed when Run exits so register/unregister senders cannot
	// block against a hub that no longer drains them.
	done chan struct{}
}

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Hub{
		log:        log,
		metrics:    m,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, 256),
		snapshots:  make(map[string][]byte),
		done:       make(chan struct{}),
	}
}

// Publish implements surface.Sink. Marshal failures are logged and the
// frame is dropped; the feed itself never sees hub errors.
func (h *Hub) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("hub frame marshal failed", zap.Error(err))
		return
	}
	msg := outbound{key: snapshotKey(v), data: data}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("hub broadcast queue full, dropping frame")
	}
}

func snapshotKey(v any) string {
	switch f := v.(type) {
	case surface.Frame:
		if f.Type == "history" {
			return "history:" + f.Symbol + ":" + f.Interval
		}
	case StatusFrame:
		return "status:" + f.Feed
	}
	return ""
}

// Run owns the client set and the snapshot map. It exits when ctx is
// cancelled, closing every connected client on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.metrics.HubClients.Inc()
			for _, snap := range h.snapshots {
				select {
				case c.send <- snap:
				default:
				}
			}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			if msg.drop {
				delete(h.snapshots, msg.key)
				continue
			}
			if msg.key != "" {
				h.snapshots[msg.key] = msg.data
			}
			for c := range h.clients {
				select {
				case c.send <- msg.data:
				default:
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.metrics.HubClients.Dec()
}

// ForgetFeed discards retained snapshots after a feed is swapped out so
// new clients do not receive stale history for a key that no longer runs.
func (h *Hub) ForgetFeed(symbol, interval string) {
	key := symbol + ":" + interval
	for _, snap := range []string{"history:" + key, "status:" + key} {
		select {
		case h.broadcast <- outbound{key: snap, drop: true}:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
