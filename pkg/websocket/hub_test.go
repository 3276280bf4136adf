package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFeed(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)

	handler := NewHandler(hub, &config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		AllowedOrigins:  []string{"*"},
	})

	router := gin.New()
	router.GET("/live", handler.HandleWebSocket)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/live"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome Message
	readMessage(t, conn, &welcome)
	require.Equal(t, MessageTypeWelcome, welcome.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, dest *Message) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, dest))
}

func TestHub_BroadcastsEventsToClients(t *testing.T) {
	hub, url := startFeed(t)
	conn := dial(t, url)

	hub.BroadcastEvents([]*models.AnalyticsEvent{{
		ID:        "evt-1",
		EventType: models.EventTypePageView,
		Timestamp: "2024-05-01T10:00:00.000Z",
		SessionID: "s1",
	}})

	var msg Message
	readMessage(t, conn, &msg)
	assert.Equal(t, MessageTypeEvent, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "evt-1", msg.Event.ID)
}

func TestHub_SubscriptionFiltersEventTypes(t *testing.T) {
	hub, url := startFeed(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":       MessageTypeSubscribe,
		"eventTypes": []string{"product_button_click"},
	}))

	// The subscribe frame is handled asynchronously by the read pump.
	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		for client := range hub.clients {
			if !client.wants(models.EventTypePageView) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastEvents([]*models.AnalyticsEvent{
		{ID: "skip", EventType: models.EventTypePageView},
		{ID: "keep", EventType: models.EventTypeProductButtonClick},
	})

	var msg Message
	readMessage(t, conn, &msg)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "keep", msg.Event.ID)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://shop.example"})

	allowed := httptest.NewRequest(http.MethodGet, "/live", nil)
	allowed.Header.Set("Origin", "https://shop.example")
	denied := httptest.NewRequest(http.MethodGet, "/live", nil)
	denied.Header.Set("Origin", "https://evil.example")

	assert.True(t, check(allowed))
	assert.False(t, check(denied))
	assert.True(t, checkOrigin([]string{"*"})(denied))
}
