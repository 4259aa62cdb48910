package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tasksync/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096

	// DefaultPingInterval is how often idle push channels are pinged.
	DefaultPingInterval = 30 * time.Second
	// DefaultPongWait is how long a channel may stay silent before it is pruned.
	DefaultPongWait = 60 * time.Second
	// DefaultSendBuffer is the number of frames queued per channel.
	DefaultSendBuffer = 16
)

// HubOptions configures a Hub.
type HubOptions struct {
	PingInterval time.Duration
	PongWait     time.Duration
	SendBuffer   int
	Logger       *slog.Logger
}

// Hub is the registry of open push channels.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongWait     time.Duration
	sendBuffer   int
	logger       *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: opts.PingInterval,
		pongWait:     opts.PongWait,
		sendBuffer:   opts.SendBuffer,
		logger:       logging.OrDiscard(opts.Logger),
		clients:      make(map[*client]struct{}),
	}
	if h.pingInterval <= 0 {
		h.pingInterval = DefaultPingInterval
	}
	if h.pongWait <= 0 {
		h.pongWait = DefaultPongWait
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = DefaultSendBuffer
	}
	return h
}

// Count returns the number of open channels.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues frame on every open channel. Channels whose queue is
// full are pruned. Broadcast never blocks.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	var slow []*client
	for _, c := range targets {
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.logger.Warn("pruning slow push channel", "remote", c.conn.RemoteAddr().String())
		h.remove(c)
	}
}

// Serve upgrades the request to a push channel and blocks until it closes.
// initial is called after the channel is registered; its frame is the
// first one the channel receives.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial func() ([]byte, error)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	h.logger.Info("push channel connected", "remote", conn.RemoteAddr().String(), "channels", h.Count())

	if frame, err := initial(); err != nil {
		h.logger.Error("encode initial snapshot failed", "error", err)
	} else {
		c.enqueue(frame)
	}

	go c.writePump()
	c.readPump()
}

// Close disconnects every channel and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	if ok {
		h.logger.Info("push channel disconnected", "remote", c.conn.RemoteAddr().String())
	}
}

func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump discards inbound frames; it exists to process pongs and notice
// closed sockets.
func (c *client) readPump() {
	defer c.hub.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("push channel read error", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.remove(c)
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
