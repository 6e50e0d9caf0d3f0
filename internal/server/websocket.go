package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://localhost:8888" || origin == "http://127.0.0.1:8888"
	},
	HandshakeTimeout: 10 * time.Second,
}

// WebSocketMessage represents a message to broadcast
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WebSocketClient represents a connected dashboard tab
type WebSocketClient struct {
	hub       *WebSocketHub
	conn      *websocket.Conn
	send      chan []byte
	projectID string // optional: subscribe to one project's events
	clientID  string
}

// WebSocketHub manages WebSocket connections and fan-out
type WebSocketHub struct {
	clients    map[*WebSocketClient]bool
	broadcast  chan []byte
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	mu         sync.RWMutex
	log        *logrus.Entry
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logrus.Logger) *WebSocketHub {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &WebSocketHub{
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		log:        log.WithField("component", "websocket"),
	}
}

// Run starts the hub loop
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client, drop it rather than block the hub
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Warn("failed to marshal message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast buffer full, dropping message")
	}
}

// BroadcastToProject sends a message to clients watching one project
func (h *WebSocketHub) BroadcastToProject(projectID string, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Warn("failed to marshal message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.projectID == "" || client.projectID == projectID {
			select {
			case client.send <- data:
			default:
			}
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the connection and attaches it to the hub
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.wsHub.log.WithError(err).Warn("upgrade failed")
		return
	}

	client := &WebSocketClient{
		hub:       s.wsHub,
		conn:      conn,
		send:      make(chan []byte, 256),
		projectID: c.Query("project_id"),
		clientID:  c.ClientIP() + "-" + time.Now().Format("150405"),
	}

	s.wsHub.register <- client

	go client.writePump()
	go client.readPump()

	welcome := WebSocketMessage{
		Type: "connected",
		Data: map[string]any{
			"client_id":  client.clientID,
			"project_id": client.projectID,
		},
	}
	if data, err := json.Marshal(welcome); err == nil {
		client.send <- data
	}
}

// readPump reads messages from the WebSocket connection
func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("read error")
			}
			break
		}

		var msg struct {
			Type      string `json:"type"`
			ProjectID string `json:"project_id,omitempty"`
		}
		if json.Unmarshal(message, &msg) == nil {
			switch msg.Type {
			case "subscribe":
				c.projectID = msg.ProjectID
			case "ping":
				if data, err := json.Marshal(WebSocketMessage{Type: "pong"}); err == nil {
					c.send <- data
				}
			}
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// coalesce anything already queued into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
