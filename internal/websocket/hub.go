// Package websocket pushes alerts to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope of every frame sent to a client.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one websocket connection belonging to a user.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
}

// Hub tracks connections per user and fans messages out to them.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string][]*Client
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	logger      *logrus.Logger
	mutex       sync.RWMutex
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run handles registration until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"user_id":       client.UserID,
				"total_clients": total,
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			h.removeLocked(client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"user_id":       client.UserID,
				"total_clients": total,
			}).Info("WebSocket client disconnected")
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	userClients := h.userClients[client.UserID]
	for i, c := range userClients {
		if c == client {
			h.userClients[client.UserID] = append(userClients[:i], userClients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.UserID]) == 0 {
		delete(h.userClients, client.UserID)
	}
}

// HandleWebSocket upgrades GET /ws/:user_id.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// SendToUser delivers a message to every connection of the user and reports
// how many connections accepted it. Slow clients are dropped.
func (h *Hub) SendToUser(userID string, msgType string, data interface{}) (int, error) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return 0, err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	delivered := 0
	for _, client := range append([]*Client(nil), h.userClients[userID]...) {
		select {
		case client.Send <- payload:
			delivered++
		default:
			h.removeLocked(client)
		}
	}
	return delivered, nil
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// IsConnected reports whether the user has at least one open connection.
func (h *Hub) IsConnected(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients[userID]) > 0
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
