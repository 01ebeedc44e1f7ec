// Package websocket tracks analysis stream connections and pumps their
// messages. Each client owns one reader and one writer goroutine.
package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/platformbuilds/mirador-rollout/internal/metrics"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// ErrTooManyConnections is returned by Register when the hub is full.
var ErrTooManyConnections = errors.New("too many stream connections")

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

// Message is the frame written to stream clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Details   string      `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type Hub struct {
	clients map[*Client]struct{}
	max     int
	logger  logger.Logger
	mu      sync.Mutex
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	id        string
	closeOnce sync.Once
}

// NewHub creates a hub admitting at most max clients; max <= 0 means no limit.
func NewHub(max int, logger logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		max:     max,
		logger:  logger,
	}
}

func (h *Hub) NewClient(conn *websocket.Conn, id string) *Client {
	return &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), id: id}
}

func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.max > 0 && len(h.clients) >= h.max {
		return ErrTooManyConnections
	}
	h.clients[c] = struct{}{}
	metrics.ActiveWebSocketConnections.Inc()
	h.logger.Info("Stream client connected", "clientId", c.id, "active", len(h.clients))
	return nil
}

// Unregister removes the client and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		metrics.ActiveWebSocketConnections.Dec()
	}
	h.mu.Unlock()

	if ok {
		c.closeSend()
		h.logger.Info("Stream client disconnected", "clientId", c.id)
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll sends a going-away close frame to every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

func (c *Client) ID() string { return c.id }

// Send queues msg for the writer. A client whose queue is full is dropped.
func (c *Client) Send(msg Message) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to marshal stream message", "clientId", c.id, "type", msg.Type, "error", err)
		return false
	}

	defer func() {
		// send on a queue closed by a concurrent Unregister
		if recover() != nil {
			c.hub.logger.Debug("Dropped message for closed stream client", "clientId", c.id)
		}
	}()
	select {
	case c.send <- b:
		return true
	default:
		c.hub.logger.Warn("Stream client too slow; disconnecting", "clientId", c.id)
		c.hub.Unregister(c)
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It returns when the queue is closed or a write fails.
func (c *Client) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
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

// ReadPump hands every text frame to handle until the peer goes away. Pongs
// extend the read deadline by two ping intervals.
func (c *Client) ReadPump(maxMessageSize int64, pingInterval time.Duration, handle func([]byte)) {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	wait := 2 * pingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("Stream read failed", "clientId", c.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		handle(data)
	}
}
