package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	pongWait   time.Duration
	pingPeriod time.Duration

	mu         sync.RWMutex
	eventTypes map[models.EventType]bool
}

type subscribeRequest struct {
	Type       string             `json:"type"`
	EventTypes []models.EventType `json:"eventTypes"`
}

func NewClient(hub *Hub, conn *websocket.Conn, pongWait, pingPeriod time.Duration) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		remoteAddr: conn.RemoteAddr().String(),
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// wants reports whether the client subscribed to eventType. No subscription
// means every event.
func (c *Client) wants(eventType models.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.eventTypes) == 0 {
		return true
	}
	return c.eventTypes[eventType]
}

func (c *Client) subscribe(types []models.EventType) {
	filter := make(map[models.EventType]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}

	c.mu.Lock()
	c.eventTypes = filter
	c.mu.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("Live feed connection closed unexpectedly")
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON message per frame so dashboards can parse frames directly.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var req subscribeRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.hub.log.WithError(err).Debug("Ignoring malformed live feed message")
		return
	}

	switch req.Type {
	case MessageTypeSubscribe:
		c.subscribe(req.EventTypes)
	}
}
