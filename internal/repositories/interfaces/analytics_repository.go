package interfaces

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnalyticsRepository persists storefront events in a single append-only
// collection. Timestamp bounds in EventFilter are inclusive string comparisons.
type AnalyticsRepository interface {
	// Event tracking
	InsertEvents(ctx context.Context, events []*models.AnalyticsEvent) error
	FindEvents(ctx context.Context, filter *models.EventFilter, params *utils.PaginationParams) ([]*models.AnalyticsEvent, int64, error)

	// Aggregation
	CountEvents(ctx context.Context, filter *models.EventFilter) (int64, error)
	// GroupByMetadata counts events per metadata[field], skipping events without
	// it, sorted by count descending. labelField, when set, carries the first
	// value of metadata[labelField] seen in each group.
	GroupByMetadata(ctx context.Context, filter *models.EventFilter, field, labelField string, limit int) ([]*models.GroupCount, error)
	CountDistinctSessions(ctx context.Context, filter *models.EventFilter) (int64, error)

	// Retention
	FindEventsBefore(ctx context.Context, cutoff string) ([]*models.AnalyticsEvent, error)
	DeleteEventsBefore(ctx context.Context, cutoff string) (int64, error)
	DeleteEvents(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}
