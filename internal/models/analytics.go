package models

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventType string

const (
	EventTypePageView           EventType = "page_view"
	EventTypeProductView        EventType = "product_view"
	EventTypeProductDetailView  EventType = "product_detail_view"
	EventTypeProductButtonClick EventType = "product_button_click"
)

// ProductViewEventTypes is the product-view family counted as product impressions.
var ProductViewEventTypes = []EventType{EventTypeProductView, EventTypeProductDetailView}

// Metadata keys written by the storefront.
const (
	MetaProductID   = "productId"
	MetaProductName = "productName"
	MetaCategory    = "category"
	MetaPage        = "page"
	MetaButtonLabel = "buttonLabel"
	MetaURL         = "url"
	MetaReferrer    = "referrer"
)

// AnalyticsEvent is one recorded storefront interaction. Events are append-only;
// Timestamp is the client's ISO-8601 string and is stored verbatim so range
// filters keep their lexicographic semantics.
type AnalyticsEvent struct {
	ObjectID  primitive.ObjectID     `json:"-" bson:"_id,omitempty"`
	ID        string                 `json:"id" bson:"id" validate:"required"`
	EventType EventType              `json:"eventType" bson:"eventType" validate:"required"`
	Timestamp string                 `json:"timestamp" bson:"timestamp" validate:"required"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	SessionID string                 `json:"sessionId" bson:"sessionId" validate:"required"`
	UserAgent string                 `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
}

// MetadataString returns metadata[key] when it holds a string.
func (e *AnalyticsEvent) MetadataString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if s, ok := e.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// TrackRequest accepts either a single event or {"events": [...]}.
// Malformed counts batch elements that could not be decoded as an event.
type TrackRequest struct {
	AnalyticsEvent
	Events    []AnalyticsEvent `json:"events"`
	Malformed int              `json:"-"`
}

// IsBatch reports whether the body carried an events array (possibly empty).
func (r *TrackRequest) IsBatch() bool {
	return r.Events != nil
}

// ParseTrackRequest decodes a track body. Batch elements are decoded one at
// a time so an ill-typed element is counted in Malformed instead of failing
// the whole batch.
func ParseTrackRequest(data []byte) (*TrackRequest, error) {
	var envelope struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	req := &TrackRequest{}
	if envelope.Events == nil {
		if err := json.Unmarshal(data, &req.AnalyticsEvent); err != nil {
			return nil, err
		}
		return req, nil
	}

	req.Events = make([]AnalyticsEvent, 0, len(envelope.Events))
	for _, raw := range envelope.Events {
		var event AnalyticsEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			req.Malformed++
			continue
		}
		req.Events = append(req.Events, event)
	}
	return req, nil
}

type TrackResponse struct {
	Success bool `json:"success"`
	Tracked *int `json:"tracked,omitempty"`
}

// EventFilter scopes repository queries. Empty fields do not constrain.
type EventFilter struct {
	StartDate          string
	EndDate            string
	EventTypes         []EventType
	ButtonLabelPattern string
}

// GroupCount is one bucket of a group-by over a metadata field.
type GroupCount struct {
	Key   string `json:"key" bson:"_id"`
	Label string `json:"label,omitempty" bson:"label"`
	Count int64  `json:"count" bson:"count"`
}

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type TopProduct struct {
	ProductID        string  `json:"productId"`
	ProductName      string  `json:"productName"`
	ViewCount        int64   `json:"viewCount"`
	DMClickCount     int64   `json:"dmClickCount"`
	ClickThroughRate float64 `json:"clickThroughRate"`
}

type TopCategory struct {
	Category  string `json:"category"`
	ViewCount int64  `json:"viewCount"`
}

type PageViewStat struct {
	Page      string `json:"page"`
	ViewCount int64  `json:"viewCount"`
}

type AnalyticsSummary struct {
	TotalPageViews    int64          `json:"totalPageViews"`
	TotalProductViews int64          `json:"totalProductViews"`
	TotalDMClicks     int64          `json:"totalDMClicks"`
	UniqueSessions    int64          `json:"uniqueSessions"`
	DateRange         DateRange      `json:"dateRange"`
	TopProducts       []TopProduct   `json:"topProducts"`
	TopCategories     []TopCategory  `json:"topCategories"`
	PageViewsByPage   []PageViewStat `json:"pageViewsByPage"`
}

// RealtimeSnapshot holds today's counters kept outside the event collection.
type RealtimeSnapshot struct {
	Date           string              `json:"date"`
	Counts         map[EventType]int64 `json:"counts"`
	UniqueSessions int64               `json:"uniqueSessions"`
}

type PurgeResult struct {
	Cutoff     string `json:"cutoff"`
	Deleted    int64  `json:"deleted"`
	Archived   int    `json:"archived"`
	ArchiveKey string `json:"archiveKey,omitempty"`
}
