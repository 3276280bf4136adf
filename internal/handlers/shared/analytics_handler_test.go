package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/repositories/memory"
	"storefront/internal/repositories/mocks"
	"storefront/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(service services.AnalyticsService) *gin.Engine {
	handler := NewAnalyticsHandler(service, 60, 365, nil)

	router := gin.New()
	router.POST("/api/analytics/track", handler.Track)
	router.GET("/api/admin/analytics", handler.GetSummary)
	router.GET("/api/admin/analytics/events", handler.ListEvents)
	router.DELETE("/api/admin/analytics/events", handler.PurgeEvents)
	router.GET("/api/admin/analytics/realtime", handler.GetRealtime)
	return router
}

func memoryService() (services.AnalyticsService, *memory.AnalyticsRepository) {
	repo := memory.NewAnalyticsRepository()
	return services.NewAnalyticsService(repo, nil, nil, nil, nil, &config.AnalyticsConfig{DefaultWindowDays: 30, TopN: 10}, "", nil), repo
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validEventBody(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":        id,
		"eventType": "product_view",
		"timestamp": "2024-05-01T10:00:00.000Z",
		"sessionId": "sess-1",
		"userAgent": "Mozilla/5.0",
		"metadata": map[string]interface{}{
			"productId":   "p1",
			"productName": "Disco Ball",
		},
	}
}

func TestTrack_SingleEvent(t *testing.T) {
	service, repo := memoryService()
	router := newRouter(service)

	rec := perform(router, http.MethodPost, "/api/analytics/track", validEventBody("evt-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"tracked":1}`, rec.Body.String())

	stored := repo.All()
	require.Len(t, stored, 1)
	assert.Equal(t, "evt-1", stored[0].ID)
	assert.Equal(t, models.EventTypeProductView, stored[0].EventType)
	assert.Equal(t, "Mozilla/5.0", stored[0].UserAgent)
	assert.Equal(t, "Disco Ball", stored[0].Metadata["productName"])
}

func TestTrack_BatchPartiallyValid(t *testing.T) {
	service, repo := memoryService()
	router := newRouter(service)

	invalid := validEventBody("evt-2")
	delete(invalid, "sessionId")

	rec := perform(router, http.MethodPost, "/api/analytics/track", map[string]interface{}{
		"events": []interface{}{validEventBody("evt-1"), invalid, validEventBody("evt-3")},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"tracked":2}`, rec.Body.String())
	assert.Equal(t, 2, repo.Len())
}

func TestTrack_BatchWithIllTypedElement(t *testing.T) {
	service, repo := memoryService()
	router := newRouter(service)

	illTyped := validEventBody("evt-2")
	illTyped["metadata"] = "oops"
	numericSession := validEventBody("evt-4")
	numericSession["sessionId"] = 42

	rec := perform(router, http.MethodPost, "/api/analytics/track", map[string]interface{}{
		"events": []interface{}{validEventBody("evt-1"), illTyped, validEventBody("evt-3"), numericSession},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"tracked":2}`, rec.Body.String())

	stored := repo.All()
	require.Len(t, stored, 2)
	assert.Equal(t, "evt-1", stored[0].ID)
	assert.Equal(t, "evt-3", stored[1].ID)
}

func TestTrack_BatchOnlyIllTypedElements(t *testing.T) {
	service, repo := memoryService()
	router := newRouter(service)

	rec := perform(router, http.MethodPost, "/api/analytics/track", `{"events":[{"id":1},"not-an-event"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, repo.Len())
}

func TestTrack_ClientErrors(t *testing.T) {
	invalid := validEventBody("evt-1")
	delete(invalid, "timestamp")

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "invalid single event", body: invalid},
		{name: "all invalid batch", body: map[string]interface{}{"events": []interface{}{invalid}}},
		{name: "empty batch", body: `{"events":[]}`},
		{name: "malformed json", body: `{"events":`},
		{name: "empty object", body: `{}`},
		{name: "not json", body: `event=page_view`},
		{name: "ill-typed single event", body: `{"id":"evt-1","eventType":"page_view","timestamp":"2024-05-01T10:00:00.000Z","sessionId":"s1","metadata":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo := memoryService()
			router := newRouter(service)

			rec := perform(router, http.MethodPost, "/api/analytics/track", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.Zero(t, repo.Len())
		})
	}
}

func TestTrack_StorageFailureStillSucceeds(t *testing.T) {
	repo := new(mocks.AnalyticsRepository)
	repo.On("InsertEvents", mock.Anything, mock.Anything).Return(errors.New("no reachable servers"))
	router := newRouter(services.NewAnalyticsService(repo, nil, nil, nil, nil, nil, "", nil))

	rec := perform(router, http.MethodPost, "/api/analytics/track", validEventBody("evt-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	repo.AssertExpectations(t)
}

func TestGetSummary_SetsPrivateCache(t *testing.T) {
	service, _ := memoryService()
	router := newRouter(service)

	perform(router, http.MethodPost, "/api/analytics/track", validEventBody("evt-1"))
	rec := perform(router, http.MethodGet,
		"/api/admin/analytics?startDate=2024-05-01T00:00:00.000Z&endDate=2024-05-02T00:00:00.000Z", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))

	var summary models.AnalyticsSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.TotalProductViews)
	assert.Equal(t, "2024-05-01T00:00:00.000Z", summary.DateRange.StartDate)
	require.Len(t, summary.TopProducts, 1)
	assert.Equal(t, "Disco Ball", summary.TopProducts[0].ProductName)
}

func TestGetSummary_EmptyArraysSerialized(t *testing.T) {
	service, _ := memoryService()
	router := newRouter(service)

	rec := perform(router, http.MethodGet, "/api/admin/analytics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, []interface{}{}, raw["topProducts"])
	assert.Equal(t, []interface{}{}, raw["topCategories"])
	assert.Equal(t, float64(0), raw["totalPageViews"])
}

func TestGetSummary_Failure(t *testing.T) {
	repo := new(mocks.AnalyticsRepository)
	repo.On("CountEvents", mock.Anything, mock.Anything).Return(int64(0), errors.New("timeout"))
	repo.On("CountDistinctSessions", mock.Anything, mock.Anything).Return(int64(0), nil)
	repo.On("GroupByMetadata", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.GroupCount{}, nil)
	router := newRouter(services.NewAnalyticsService(repo, nil, nil, nil, nil, nil, "", nil))

	rec := perform(router, http.MethodGet, "/api/admin/analytics", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch analytics"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestListEvents_FiltersAndPaginates(t *testing.T) {
	service, _ := memoryService()
	router := newRouter(service)

	pageView := validEventBody("pv")
	pageView["eventType"] = "page_view"
	perform(router, http.MethodPost, "/api/analytics/track", map[string]interface{}{
		"events": []interface{}{validEventBody("a"), validEventBody("b"), pageView},
	})

	rec := perform(router, http.MethodGet, "/api/admin/analytics/events?eventType=product_view&page_size=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []models.AnalyticsEvent `json:"data"`
		Meta struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
			HasNext    bool  `json:"hasNext"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, int64(2), body.Meta.Total)
	assert.Equal(t, 2, body.Meta.TotalPages)
	assert.True(t, body.Meta.HasNext)
}

func TestGetRealtime_Disabled(t *testing.T) {
	service, _ := memoryService()
	router := newRouter(service)

	rec := perform(router, http.MethodGet, "/api/admin/analytics/realtime", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPurgeEvents(t *testing.T) {
	service, repo := memoryService()
	router := newRouter(service)

	old := validEventBody("old")
	old["timestamp"] = "2000-01-01T00:00:00.000Z"
	perform(router, http.MethodPost, "/api/analytics/track", map[string]interface{}{
		"events": []interface{}{old, validEventBody("new")},
	})

	rec := perform(router, http.MethodDelete, "/api/admin/analytics/events?olderThanDays=3650", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.PurgeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.Deleted)
	assert.Equal(t, 1, repo.Len())

	rec = perform(router, http.MethodDelete, "/api/admin/analytics/events?olderThanDays=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(router, http.MethodDelete, "/api/admin/analytics/events?olderThanDays=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseEventTypes(t *testing.T) {
	types := parseEventTypes([]string{"page_view, product_view", "", "product_button_click"})

	assert.Equal(t, []models.EventType{
		models.EventTypePageView,
		models.EventTypeProductView,
		models.EventTypeProductButtonClick,
	}, types)
	assert.Nil(t, parseEventTypes(nil))
}
