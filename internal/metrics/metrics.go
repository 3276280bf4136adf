package metrics

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the analytics pipeline.
type Metrics struct {
	// Ingestion
	EventsIngested  *prometheus.CounterVec
	EventsRejected  prometheus.Counter
	IngestFailures  prometheus.Counter
	RealtimeErrors  prometheus.Counter
	LiveFeedClients prometheus.GaugeFunc

	// Aggregation
	SummaryDuration prometheus.Histogram
	SummaryErrors   prometheus.Counter

	// Retention
	EventsPurged   prometheus.Counter
	EventsArchived prometheus.Counter

	// HTTP
	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers the collectors on a fresh registry. liveClients, when set,
// reports the number of connected live feed dashboards.
func New(namespace string, liveClients func() int) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &Metrics{
		EventsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_events_ingested_total",
				Help:      "Analytics events persisted, by event type",
			},
			[]string{"event_type"},
		),
		EventsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_rejected_total",
			Help:      "Analytics events dropped for missing required fields",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_ingest_failures_total",
			Help:      "Ingest requests whose events could not be stored",
		}),
		RealtimeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_realtime_errors_total",
			Help:      "Failed updates of the realtime counters",
		}),
		SummaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analytics_summary_duration_seconds",
			Help:      "Time spent computing the admin analytics summary",
			Buckets:   prometheus.DefBuckets,
		}),
		SummaryErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_summary_errors_total",
			Help:      "Failed analytics summary computations",
		}),
		EventsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_purged_total",
			Help:      "Analytics events removed by retention",
		}),
		EventsArchived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_archived_total",
			Help:      "Analytics events written to the archive store",
		}),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		registry: registry,
	}

	if liveClients != nil {
		m.LiveFeedClients = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analytics_live_feed_clients",
			Help:      "Connected live feed dashboards",
		}, func() float64 { return float64(liveClients()) })
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordIngested(events []*models.AnalyticsEvent) {
	for _, event := range events {
		m.EventsIngested.WithLabelValues(string(event.EventType)).Inc()
	}
}

func (m *Metrics) RecordRejected(n int) {
	if n > 0 {
		m.EventsRejected.Add(float64(n))
	}
}

func (m *Metrics) RecordIngestFailure() {
	m.IngestFailures.Inc()
}

func (m *Metrics) RecordRealtimeError() {
	m.RealtimeErrors.Inc()
}

func (m *Metrics) RecordSummary(duration time.Duration, err error) {
	m.SummaryDuration.Observe(duration.Seconds())
	if err != nil {
		m.SummaryErrors.Inc()
	}
}

func (m *Metrics) RecordPurge(deleted int64, archived int) {
	m.EventsPurged.Add(float64(deleted))
	m.EventsArchived.Add(float64(archived))
}

func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
