package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/pkg/logger"
)

const (
	MessageTypeWelcome   = "welcome"
	MessageTypeEvent     = "event"
	MessageTypeSubscribe = "subscribe"
)

// Hub fans ingested events out to connected admin dashboards.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	log        *logger.Logger
}

type Message struct {
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Event     *models.AnalyticsEvent `json:"event,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.WithComponent("live_feed"),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.sendToAll(message)
		}
	}
}

// BroadcastEvents queues events for every connected client. It never blocks
// ingestion: when the queue is full the events are dropped from the feed.
func (h *Hub) BroadcastEvents(events []*models.AnalyticsEvent) {
	now := getCurrentTimestamp()
	for _, event := range events {
		select {
		case h.broadcast <- &Message{Type: MessageTypeEvent, Timestamp: now, Event: event}:
		default:
			h.log.WithField("event_id", event.ID).Warn("Live feed queue full, dropping event")
		}
	}
}

// Register attaches a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister detaches a client; it is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()

	h.log.WithField("remote_addr", client.remoteAddr).Debug("Live feed client registered")

	h.sendToClient(client, &Message{
		Type:      MessageTypeWelcome,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message": "Connected successfully",
		},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.log.WithField("remote_addr", client.remoteAddr).Debug("Live feed client unregistered")
	}
}

func (h *Hub) sendToAll(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal live feed message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if message.Event != nil && !client.wants(message.Event.EventType) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop it rather than stall the feed.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) sendToClient(client *Client, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
