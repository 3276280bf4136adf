package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/models"
)

const defaultSendTimeout = 10 * time.Second

// Transport delivers one batch of events to the ingestion endpoint.
type Transport interface {
	Send(ctx context.Context, events []*models.AnalyticsEvent) error
}

// Beacon is a fire-and-forget delivery primitive that survives shutdown.
// SendBeacon reports whether the payload was accepted for delivery.
type Beacon interface {
	SendBeacon(events []*models.AnalyticsEvent) bool
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, events []*models.AnalyticsEvent) error

func (f TransportFunc) Send(ctx context.Context, events []*models.AnalyticsEvent) error {
	return f(ctx, events)
}

type batchPayload struct {
	Events []*models.AnalyticsEvent `json:"events"`
}

// HTTPTransport posts {"events": [...]} to the ingestion endpoint.
type HTTPTransport struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewHTTPTransport returns a transport for endpoint, e.g.
// https://shop.example.com/api/analytics/track. A nil client uses a
// client with a 10s timeout.
func NewHTTPTransport(endpoint string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: defaultSendTimeout}
	}
	return &HTTPTransport{
		endpoint:   endpoint,
		httpClient: client,
	}
}

// WithUserAgent sets the User-Agent header sent with every batch.
func (t *HTTPTransport) WithUserAgent(userAgent string) *HTTPTransport {
	t.userAgent = userAgent
	return t
}

func (t *HTTPTransport) Send(ctx context.Context, events []*models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	payload, err := json.Marshal(batchPayload{Events: events})
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build track request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send events: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("track endpoint returned %s", resp.Status)
	}
	return nil
}

// SendBeacon delivers the batch on a detached goroutine so the caller never
// waits on the network. It always accepts the payload.
func (t *HTTPTransport) SendBeacon(events []*models.AnalyticsEvent) bool {
	batch := append([]*models.AnalyticsEvent(nil), events...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
		defer cancel()
		_ = t.Send(ctx, batch)
	}()
	return true
}
