package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// HubConfig holds websocket hub settings.
type HubConfig struct {
	SendBufferSize int           `yaml:"send_buffer_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReadLimit      int64         `yaml:"read_limit"`
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		SendBufferSize: 64,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		ReadLimit:      4096,
	}
}

// envelope is the wire format sent to UI clients.
type envelope struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// client is one connected UI endpoint.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// trySend queues a frame without blocking; false means full or closed.
func (c *client) trySend(raw []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub is the websocket transport to the remote UI. It implements Channel.
type Hub struct {
	config   *HubConfig
	upgrader websocket.Upgrader
	clients  map[*client]struct{}
	mu       sync.RWMutex
	log      *logrus.Logger
}

// NewHub creates a websocket hub.
func NewHub(config *HubConfig, logger *logrus.Logger) *Hub {
	if config == nil {
		config = DefaultHubConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		log:     logger,
	}
}

// Attached reports whether any UI client is connected.
func (h *Hub) Attached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// ClientCount returns the number of connected UI clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send broadcasts one named payload to every connected client. A client with
// a full send queue is disconnected rather than allowed to stall the debate.
func (h *Hub) Send(method string, payload []byte) error {
	raw, err := json.Marshal(envelope{Method: method, Payload: payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return ErrChannelUnavailable
	}

	for _, c := range targets {
		if !c.trySend(raw) {
			h.log.Warn("UI client send queue full, disconnecting")
			h.remove(c)
		}
	}
	return nil
}

// Handler returns the gin handler that upgrades UI connections.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.WithField("error", err).Warn("Websocket upgrade failed")
			return
		}
		h.register(conn)
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	cl := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBufferSize),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("total_clients", total).Info("UI client connected")

	go h.writePump(cl)
	go h.readPump(cl)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, cl)
	h.mu.Unlock()

	cl.close()
	cl.conn.Close()
}

// writePump drains the client queue; the ping ticker keeps intermediaries
// from dropping idle connections.
func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-cl.send:
			if !ok {
				return
			}
			cl.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				h.remove(cl)
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl)
				return
			}
		}
	}
}

// readPump discards inbound frames; the channel is outbound-only here, but
// reading is required to process control frames and notice disconnects.
func (h *Hub) readPump(cl *client) {
	cl.conn.SetReadLimit(h.config.ReadLimit)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.remove(cl)
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
