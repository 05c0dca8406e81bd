// Package statusws pushes radio and audio status snapshots to any
// connected browser/GUI client over a websocket, so UIs can reflect
// rig state without polling the rigctl port.
package statusws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Status is one point-in-time snapshot broadcast to every connected client.
type Status struct {
	Head             string `json:"head"`
	VFOA             uint64 `json:"vfo_a_hz"`
	VFOB             uint64 `json:"vfo_b_hz"`
	Mode             string `json:"mode"`
	PTT              bool   `json:"ptt"`
	Split            bool   `json:"split"`
	RigctlSessions   int    `json:"rigctl_sessions"`
	AudioConnected   bool   `json:"audio_connected"`
	AudioLatencyMs   int64  `json:"audio_latency_ms"`
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub accepts websocket clients at its HTTP handler and broadcasts
// every Publish call to all of them, dropping any client whose write fails.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*wsConn]struct{}
}

// New returns an empty Hub.
func New(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{logger: logger, clients: make(map[*wsConn]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("statusws upgrade failed", "err", err)
		return
	}
	c := &wsConn{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	// Clients are read-only consumers; drain and discard to notice
	// disconnects and respond to pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish serializes st and broadcasts it to every connected client.
func (h *Hub) Publish(st Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		h.logger.Warn("statusws marshal failed", "err", err)
		return
	}

	h.mu.Lock()
	clients := make([]*wsConn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(payload); err != nil {
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.conn.Close()
		}
	}
}

// ClientCount reports the number of connected status websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
