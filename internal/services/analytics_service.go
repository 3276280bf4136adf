package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories/interfaces"
	"storefront/internal/utils"
	"storefront/internal/validators"
	"storefront/pkg/logger"
	"storefront/pkg/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidEvent     = errors.New("event is missing required fields")
	ErrNoValidEvents    = errors.New("batch contains no valid events")
	ErrRealtimeDisabled = errors.New("realtime analytics is not configured")
	ErrInvalidRetention = errors.New("retention age must be a positive number of days")
)

type AnalyticsService interface {
	// Ingestion
	TrackEvents(ctx context.Context, req *models.TrackRequest) (int, error)

	// Aggregation
	GetSummary(ctx context.Context, startDate, endDate string) (*models.AnalyticsSummary, error)
	ListEvents(ctx context.Context, filter *models.EventFilter, params *utils.PaginationParams) ([]*models.AnalyticsEvent, int64, error)
	GetRealtime(ctx context.Context) (*models.RealtimeSnapshot, error)

	// Retention
	PurgeEvents(ctx context.Context, olderThanDays int) (*models.PurgeResult, error)
}

// RealtimeRecorder maintains the per-day counters shown on the live dashboard.
type RealtimeRecorder interface {
	Record(ctx context.Context, events []*models.AnalyticsEvent) error
	Today(ctx context.Context) (*models.RealtimeSnapshot, error)
}

// EventBroadcaster pushes freshly stored events to connected dashboards.
type EventBroadcaster interface {
	BroadcastEvents(events []*models.AnalyticsEvent)
}

type analyticsService struct {
	analyticsRepo interfaces.AnalyticsRepository
	realtime      RealtimeRecorder
	broadcaster   EventBroadcaster
	archive       storage.StorageProvider
	metrics       *metrics.Metrics
	config        *config.AnalyticsConfig
	archivePrefix string
	log           *logger.Logger
	now           func() time.Time
}

// NewAnalyticsService wires the analytics pipeline. realtime, broadcaster,
// archive and m are optional and may be nil.
func NewAnalyticsService(
	analyticsRepo interfaces.AnalyticsRepository,
	realtime RealtimeRecorder,
	broadcaster EventBroadcaster,
	archive storage.StorageProvider,
	m *metrics.Metrics,
	cfg *config.AnalyticsConfig,
	archivePrefix string,
	log *logger.Logger,
) AnalyticsService {
	if log == nil {
		log = logger.NewNop()
	}
	return &analyticsService{
		analyticsRepo: analyticsRepo,
		realtime:      realtime,
		broadcaster:   broadcaster,
		archive:       archive,
		metrics:       m,
		config:        cfg,
		archivePrefix: strings.Trim(archivePrefix, "/"),
		log:           log.WithComponent("analytics_service"),
		now:           time.Now,
	}
}

// TrackEvents validates and stores a single event or a batch. Invalid events
// in a batch are dropped; a single invalid event or an all-invalid batch is
// an error. It returns the number of events stored.
func (s *analyticsService) TrackEvents(ctx context.Context, req *models.TrackRequest) (int, error) {
	var events []*models.AnalyticsEvent
	rejected := 0

	if req.IsBatch() {
		events = validators.FilterValidEvents(req.Events)
		rejected = len(req.Events) - len(events) + req.Malformed
		s.recordRejected(rejected)
		if len(events) == 0 {
			return 0, ErrNoValidEvents
		}
	} else {
		event := req.AnalyticsEvent
		if !validators.IsValidEvent(&event) {
			s.recordRejected(1)
			return 0, ErrInvalidEvent
		}
		events = []*models.AnalyticsEvent{&event}
	}

	if err := s.analyticsRepo.InsertEvents(ctx, events); err != nil {
		if s.metrics != nil {
			s.metrics.RecordIngestFailure()
		}
		return 0, fmt.Errorf("failed to track events: %w", err)
	}

	s.log.LogIngest(len(events), rejected, req.IsBatch())
	s.publish(ctx, events)

	return len(events), nil
}

// publish feeds the side channels. Their failures never reach the caller.
func (s *analyticsService) publish(ctx context.Context, events []*models.AnalyticsEvent) {
	if s.metrics != nil {
		s.metrics.RecordIngested(events)
	}

	if s.realtime != nil {
		if err := s.realtime.Record(ctx, events); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("Failed to update realtime counters")
			if s.metrics != nil {
				s.metrics.RecordRealtimeError()
			}
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvents(events)
	}
}

func (s *analyticsService) recordRejected(n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.RecordRejected(n)
	}
}

// GetSummary aggregates the events whose timestamp falls within
// [startDate, endDate]. Empty bounds default to the configured window ending now.
func (s *analyticsService) GetSummary(ctx context.Context, startDate, endDate string) (summary *models.AnalyticsSummary, err error) {
	started := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSummary(s.now().Sub(started), err)
		}
	}()

	defaultStart, defaultEnd := utils.DefaultDateRange(started, s.windowDays())
	if startDate == "" {
		startDate = defaultStart
	}
	if endDate == "" {
		endDate = defaultEnd
	}

	pageViews := &models.EventFilter{
		StartDate:  startDate,
		EndDate:    endDate,
		EventTypes: []models.EventType{models.EventTypePageView},
	}
	productViews := &models.EventFilter{
		StartDate:  startDate,
		EndDate:    endDate,
		EventTypes: models.ProductViewEventTypes,
	}
	dmClicks := &models.EventFilter{
		StartDate:          startDate,
		EndDate:            endDate,
		EventTypes:         []models.EventType{models.EventTypeProductButtonClick},
		ButtonLabelPattern: utils.DMOrderPattern,
	}
	allEvents := &models.EventFilter{StartDate: startDate, EndDate: endDate}

	topN := s.topN()
	summary = &models.AnalyticsSummary{
		DateRange: models.DateRange{StartDate: startDate, EndDate: endDate},
	}

	var productGroups, dmGroups, categoryGroups, pageGroups []*models.GroupCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.TotalPageViews, err = s.analyticsRepo.CountEvents(gctx, pageViews)
		return err
	})
	g.Go(func() (err error) {
		summary.TotalProductViews, err = s.analyticsRepo.CountEvents(gctx, productViews)
		return err
	})
	g.Go(func() (err error) {
		summary.TotalDMClicks, err = s.analyticsRepo.CountEvents(gctx, dmClicks)
		return err
	})
	g.Go(func() (err error) {
		summary.UniqueSessions, err = s.analyticsRepo.CountDistinctSessions(gctx, allEvents)
		return err
	})
	g.Go(func() (err error) {
		productGroups, err = s.analyticsRepo.GroupByMetadata(gctx, productViews, models.MetaProductID, models.MetaProductName, topN)
		return err
	})
	g.Go(func() (err error) {
		dmGroups, err = s.analyticsRepo.GroupByMetadata(gctx, dmClicks, models.MetaProductID, "", 0)
		return err
	})
	g.Go(func() (err error) {
		categoryGroups, err = s.analyticsRepo.GroupByMetadata(gctx, productViews, models.MetaCategory, "", topN)
		return err
	})
	g.Go(func() (err error) {
		pageGroups, err = s.analyticsRepo.GroupByMetadata(gctx, pageViews, models.MetaPage, "", topN)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute analytics summary: %w", err)
	}

	summary.TopProducts = buildTopProducts(productGroups, dmGroups)
	summary.TopCategories = make([]models.TopCategory, 0, len(categoryGroups))
	for _, group := range categoryGroups {
		summary.TopCategories = append(summary.TopCategories, models.TopCategory{
			Category:  group.Key,
			ViewCount: group.Count,
		})
	}
	summary.PageViewsByPage = make([]models.PageViewStat, 0, len(pageGroups))
	for _, group := range pageGroups {
		summary.PageViewsByPage = append(summary.PageViewsByPage, models.PageViewStat{
			Page:      group.Key,
			ViewCount: group.Count,
		})
	}

	return summary, nil
}

func buildTopProducts(views, dmClicks []*models.GroupCount) []models.TopProduct {
	clicksByProduct := make(map[string]int64, len(dmClicks))
	for _, group := range dmClicks {
		clicksByProduct[group.Key] = group.Count
	}

	products := make([]models.TopProduct, 0, len(views))
	for _, group := range views {
		clicks := clicksByProduct[group.Key]
		products = append(products, models.TopProduct{
			ProductID:        group.Key,
			ProductName:      group.Label,
			ViewCount:        group.Count,
			DMClickCount:     clicks,
			ClickThroughRate: ClickThroughRate(clicks, group.Count),
		})
	}
	return products
}

// ClickThroughRate returns clicks/views as a percentage, or 0 without views.
func ClickThroughRate(clicks, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(clicks) / float64(views) * 100
}

func (s *analyticsService) ListEvents(ctx context.Context, filter *models.EventFilter, params *utils.PaginationParams) ([]*models.AnalyticsEvent, int64, error) {
	events, total, err := s.analyticsRepo.FindEvents(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

func (s *analyticsService) GetRealtime(ctx context.Context) (*models.RealtimeSnapshot, error) {
	if s.realtime == nil {
		return nil, ErrRealtimeDisabled
	}

	snapshot, err := s.realtime.Today(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read realtime counters: %w", err)
	}
	return snapshot, nil
}

// PurgeEvents removes events older than olderThanDays. With an archive store
// configured, the expired events are written there first and only the
// archived events are deleted.
func (s *analyticsService) PurgeEvents(ctx context.Context, olderThanDays int) (*models.PurgeResult, error) {
	if olderThanDays <= 0 {
		return nil, ErrInvalidRetention
	}

	now := s.now()
	result := &models.PurgeResult{
		Cutoff: utils.FormatTimeISO(now.AddDate(0, 0, -olderThanDays)),
	}
	log := s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"cutoff":          result.Cutoff,
		"older_than_days": olderThanDays,
	})

	if s.archive == nil {
		deleted, err := s.analyticsRepo.DeleteEventsBefore(ctx, result.Cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to purge events: %w", err)
		}
		result.Deleted = deleted
		s.recordPurge(result)
		log.WithField("deleted", deleted).Info("Purged expired analytics events")
		return result, nil
	}

	expired, err := s.analyticsRepo.FindEventsBefore(ctx, result.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load expired events: %w", err)
	}
	if len(expired) == 0 {
		return result, nil
	}

	key, err := s.archiveEvents(ctx, now, result.Cutoff, expired)
	if err != nil {
		return nil, err
	}
	result.ArchiveKey = key
	result.Archived = len(expired)

	ids := make([]primitive.ObjectID, 0, len(expired))
	for _, event := range expired {
		ids = append(ids, event.ObjectID)
	}

	deleted, err := s.analyticsRepo.DeleteEvents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete archived events: %w", err)
	}
	result.Deleted = deleted
	s.recordPurge(result)

	log.WithFields(map[string]interface{}{
		"deleted":     deleted,
		"archived":    result.Archived,
		"archive_key": key,
	}).Info("Archived and purged expired analytics events")

	return result, nil
}

func (s *analyticsService) archiveEvents(ctx context.Context, now time.Time, cutoff string, events []*models.AnalyticsEvent) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			return "", fmt.Errorf("failed to encode archived event %s: %w", event.ID, err)
		}
	}

	key := ArchiveKey(s.archivePrefix, now, uuid.NewString())
	_, err := s.archive.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      bytes.NewReader(buf.Bytes()),
		ContentType: "application/x-ndjson",
		Size:        int64(buf.Len()),
		Metadata: map[string]string{
			"cutoff": cutoff,
			"events": fmt.Sprintf("%d", len(events)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive expired events: %w", err)
	}

	return key, nil
}

// ArchiveKey names one retention archive: <prefix>/<YYYY-MM-DD>/events-<id>.ndjson.
func ArchiveKey(prefix string, now time.Time, id string) string {
	name := fmt.Sprintf("%s/events-%s.ndjson", utils.DayKey(now), id)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (s *analyticsService) recordPurge(result *models.PurgeResult) {
	if s.metrics != nil {
		s.metrics.RecordPurge(result.Deleted, result.Archived)
	}
}

func (s *analyticsService) windowDays() int {
	if s.config != nil && s.config.DefaultWindowDays > 0 {
		return s.config.DefaultWindowDays
	}
	return utils.DefaultSummaryWindowDays
}

func (s *analyticsService) topN() int {
	if s.config != nil && s.config.TopN > 0 {
		return s.config.TopN
	}
	return utils.DefaultTopN
}
