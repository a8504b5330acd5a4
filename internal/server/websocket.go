package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound messages buffered per client before it is dropped as too slow
	sendBuffer = 16
)

// Message is the JSON frame exchanged with bridged tabs.
type Message struct {
	Fragment string `json:"fragment"`
	Source   string `json:"source,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
	},
}

// Hub fans fragment changes out to every connected tab and applies
// fragments the tabs send back.
type Hub struct {
	hash *hashstate.State

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	// applyMu serialises tab fragments; sender is the tab whose fragment is
	// being applied and is guarded by mu.
	applyMu sync.Mutex
	sender  *client
}

type client struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	once       sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub bound to hash. Call Run to start forwarding changes.
func NewHub(hash *hashstate.State) *Hub {
	return &Hub{
		hash:    hash,
		clients: make(map[*client]struct{}),
	}
}

// Run subscribes to the hash state. The returned function unsubscribes and
// disconnects every client.
func (h *Hub) Run() (stop func()) {
	unsubscribe := h.hash.Subscribe(func(c hashstate.Change) {
		h.broadcast(Message{Fragment: c.Fragment, Source: string(c.Source)}, c.Source == hashstate.SourceExternal)
	})

	return func() {
		unsubscribe()
		h.mu.Lock()
		h.closed = true
		for c := range h.clients {
			c.close()
			delete(h.clients, c)
		}
		h.mu.Unlock()
	}
}

// Clients returns the number of connected tabs.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast never blocks: it runs inside a hash subscriber callback. A
// fragment that came from a tab is not echoed back to that tab.
func (h *Hub) broadcast(msg Message, external bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal bridge message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if external && c == h.sender {
			continue
		}
		select {
		case c.send <- data:
		default:
			logging.Warn("Dropping slow bridge client", zap.String("remote_addr", c.remoteAddr))
			c.close()
			delete(h.clients, c)
		}
	}
}

// register queues a snapshot of the current fragment ahead of any broadcast
// the client will receive.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	hello, err := json.Marshal(Message{Fragment: h.hash.Get(), Source: "snapshot"})
	if err != nil {
		return false
	}
	c.send <- hello
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// ServeWS upgrades the request and serves one tab until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: r.RemoteAddr,
	}

	if !h.register(c) {
		_ = conn.Close()
		return
	}
	logging.LogConnection(c.remoteAddr, "bridge_connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump applies fragments sent by the tab.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		logging.LogConnection(c.remoteAddr, "bridge_disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Bridge connection closed unexpectedly",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug("Ignoring malformed bridge message",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			continue
		}
		h.apply(c, msg.Fragment)
	}
}

// apply sets the fragment on behalf of c.
func (h *Hub) apply(c *client, fragment string) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	h.mu.Lock()
	h.sender = c
	h.mu.Unlock()

	h.hash.SetFrom(fragment, hashstate.SourceExternal)

	h.mu.Lock()
	h.sender = nil
	h.mu.Unlock()
}

// writePump forwards queued messages and keeps the connection alive.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
