// Package livefeed pushes board snapshots to websocket clients so an
// external presentation layer can mirror the board.
package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/mediassist/pkg/logger"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Hub fans snapshots out to every connected client. The most recent snapshot
// is replayed to clients as they connect. Inbound frames are read and
// dropped.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte
	closed  bool
	wg      sync.WaitGroup
}

type client struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// the feed is read-only and bound to loopback by default
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler serves the feed at /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return mux
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.DebugCF("livefeed", "Websocket upgrade failed", map[string]any{"error": err})
		return
	}

	c := &client{ws: ws, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.wg.Add(2)
	n := len(h.clients)
	h.mu.Unlock()

	logger.InfoCF("livefeed", "Client connected", map[string]any{
		"remote":  r.RemoteAddr,
		"clients": n,
	})

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast encodes v as JSON, stores it as the latest snapshot and queues
// it for every client. A client whose queue is full is disconnected.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.latest = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logger.WarnC("livefeed", "Dropping slow client")
			h.dropLocked(c)
		}
	}
	return nil
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their goroutines to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer c.ws.Close()

	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.DebugCF("livefeed", "Write failed", map[string]any{"error": err})
			h.drop(c)
			// drain so Broadcast never blocks on a dead client
			for range c.send {
			}
			return
		}
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(c)
}
