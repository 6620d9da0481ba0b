package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/lcalzada-xor/geoloc/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32

	// how often a stream checks that its watch is still registered
	livenessPoll = time.Second
)

// Message is the envelope for every frame sent to a client.
type Message struct {
	Type    string `json:"type"` // watch, position, error, end
	WatchID string `json:"watchId"`
	Payload any    `json:"payload,omitempty"`
}

// WSManager streams one watch per WebSocket connection. The watch is
// cleared when the client goes away, and the connection is closed with an
// end frame when the watch is removed elsewhere.
type WSManager struct {
	Geo      ports.Geolocation
	upgrader ws.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	id      string
	conn    *ws.Conn
	watchID domain.WatchID
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewWSManager creates a manager. allowedOrigins empty accepts same-origin
// requests only.
func NewWSManager(geo ports.Geolocation, allowedOrigins []string) *WSManager {
	m := &WSManager{
		Geo:     geo,
		logger:  slog.Default().With("component", "websocket"),
		clients: make(map[string]*client),
	}
	m.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			m.logger.Warn("Rejected origin", "origin", origin)
			return false
		},
	}
	return m
}

// HandleWatch upgrades the connection and registers a watch using the
// query string options.
func (m *WSManager) HandleWatch(w http.ResponseWriter, r *http.Request) {
	doc, err := handlers.ParseOptions(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Debug("Upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	// callbacks wait on idMu so the watch frame is always queued first
	var idMu sync.Mutex
	currentID := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		return c.watchID.String()
	}

	idMu.Lock()
	c.watchID = m.Geo.WatchPosition(
		func(p domain.Position) { m.enqueue(c, Message{Type: "position", WatchID: currentID(), Payload: p}) },
		func(e *domain.PositionError) { m.enqueue(c, Message{Type: "error", WatchID: currentID(), Payload: e}) },
		doc.Watch(),
	)
	m.enqueue(c, Message{Type: "watch", WatchID: c.watchID.String()})
	idMu.Unlock()

	m.mu.Lock()
	m.clients[c.id] = c
	m.mu.Unlock()

	m.logger.Info("WebSocket watch started", "client", c.id, "watch_id", c.watchID.String())

	go m.writePump(c)
	go m.readPump(c)
}

// enqueue never blocks the callback executor; a client that cannot keep
// up is disconnected.
func (m *WSManager) enqueue(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("JSON marshal error", "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		m.logger.Warn("Client too slow, disconnecting", "client", c.id)
		c.close()
	}
}

func (m *WSManager) readPump(c *client) {
	defer c.close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *WSManager) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	poll := time.NewTicker(livenessPoll)
	defer func() {
		ticker.Stop()
		poll.Stop()
		m.disconnect(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			if !slices.Contains(m.Geo.ActiveWatches(), c.watchID) {
				m.finish(c)
				return
			}
		}
	}
}

// finish flushes queued frames, then sends an end frame and a normal close
// for a watch that was cleared outside this connection.
func (m *WSManager) finish(c *client) {
drain:
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		default:
			break drain
		}
	}

	end, err := json.Marshal(Message{Type: "end", WatchID: c.watchID.String()})
	if err != nil {
		m.logger.Error("JSON marshal error", "error", err)
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(ws.TextMessage, end); err != nil {
		return
	}
	c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "watch ended"))
	m.logger.Debug("Watch removed elsewhere, closing stream", "client", c.id, "watch_id", c.watchID.String())
}

func (m *WSManager) disconnect(c *client) {
	c.close()
	c.conn.Close()

	m.mu.Lock()
	delete(m.clients, c.id)
	m.mu.Unlock()

	// the watch may already be gone after StopObserving
	if err := m.Geo.ClearWatch(c.watchID); err != nil {
		m.logger.Debug("Watch already cleared", "watch_id", c.watchID.String())
	}
	m.logger.Info("WebSocket watch ended", "client", c.id, "watch_id", c.watchID.String())
}

// Clients returns the number of connected watch streams.
func (m *WSManager) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// CloseAll disconnects every client.
func (m *WSManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		c.close()
	}
}
