package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIngested_CountsByType(t *testing.T) {
	m := New("storefront", nil)

	m.RecordIngested([]*models.AnalyticsEvent{
		{EventType: models.EventTypePageView},
		{EventType: models.EventTypePageView},
		{EventType: models.EventTypeProductView},
	})
	m.RecordRejected(3)
	m.RecordRejected(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsIngested.WithLabelValues("page_view")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsIngested.WithLabelValues("product_view")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsRejected))
}

func TestRecordSummary_CountsErrors(t *testing.T) {
	m := New("storefront", nil)

	m.RecordSummary(10*time.Millisecond, nil)
	m.RecordSummary(10*time.Millisecond, errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummaryErrors))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New("storefront", func() int { return 4 })
	m.RecordIngestFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "storefront_analytics_ingest_failures_total 1")
	assert.Contains(t, string(body), "storefront_analytics_live_feed_clients 4")
}
