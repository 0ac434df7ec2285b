// Package wshub implements the WebSocket / LAN-peer destination: a hub
// that accepts upgraded connections from log viewers on the local
// network and broadcasts every recorded event to all of them. Grounded
// on Gizzahub-gzh-cli's WebSocketHub/WebSocketClient register/unregister/
// broadcast-channel pattern, adapted so a "client" is a connected log
// viewer rather than a monitoring dashboard subscriber, and a broadcast
// is a Transport.Record call fanned out to every peer's send channel
// instead of a typed message-type switch.
package wshub

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// wireMessage is what goes out over the socket to every connected peer.
type wireMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
}

// client is one connected log viewer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan wireMessage
}

// Config configures a Hub.
type Config struct {
	Formatters    []format.Field
	RenderOptions format.RenderOptions
	SendBufferLen int // per-client outgoing buffer, defaults to 256
	Log           *logrus.Logger
	CheckOrigin   func(r *http.Request) bool
}

// Hub is the WebSocket transport: it both satisfies dispatch.Transport
// (Record broadcasts) and serves HTTP upgrade requests for new peers.
type Hub struct {
	cfg      Config
	log      *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	enabled bool
}

// New builds a Hub. It does not listen on anything itself; call
// ServeHTTP from the caller's own mux to accept upgrades.
func New(cfg Config) *Hub {
	if cfg.SendBufferLen <= 0 {
		cfg.SendBufferLen = 256
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		cfg:     cfg,
		log:     cfg.Log,
		clients: make(map[string]*client),
		enabled: true,
		upgrader: websocket.Upgrader{
			CheckOrigin:     cfg.CheckOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades the connection and registers the new peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("component", "wshub").WithError(err).Error("upgrade failed")
		return
	}
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan wireMessage, h.cfg.SendBufferLen),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"component": "wshub", "client_id": c.id, "total_clients": count}).Info("peer connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"component": "wshub", "client_id": c.id, "total_clients": count}).Info("peer disconnected")
}

// readPump drains (and discards) inbound frames so pong control frames
// get processed and the read deadline keeps advancing; log viewers are
// not expected to send application messages.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Enabled reports whether the hub currently accepts and broadcasts
// records.
func (h *Hub) Enabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enabled
}

// SetEnabled toggles whether the hub accepts and broadcasts records.
func (h *Hub) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
}

// Record formats e and fans it out to every connected peer's send
// channel. A peer whose channel is full is disconnected rather than
// allowed to back-pressure the broadcast, mirroring the teacher's
// close-on-full-send-channel policy.
func (h *Hub) Record(e *event.Event) bool {
	if !h.Enabled() {
		return false
	}

	resolved := format.Resolve(h.cfg.Formatters, e, h.cfg.RenderOptions)
	var text string
	for _, f := range resolved {
		text += f.Text
	}
	msg := wireMessage{ID: uuid.New().String(), Timestamp: e.Timestamp(), Level: e.Level().String(), Text: text}

	h.mu.RLock()
	peers := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		peers = append(peers, c)
	}
	h.mu.RUnlock()

	for _, c := range peers {
		select {
		case c.send <- msg:
		default:
			go h.unregister(c)
		}
	}
	return true
}

// PeerCount reports how many peers are currently connected.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every peer.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		close(c.send)
		c.conn.Close()
	}
	h.clients = make(map[string]*client)
	return nil
}
