package mocks

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/repositories/interfaces"
	"storefront/internal/utils"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnalyticsRepository is a testify mock of interfaces.AnalyticsRepository.
type AnalyticsRepository struct {
	mock.Mock
}

var _ interfaces.AnalyticsRepository = (*AnalyticsRepository)(nil)

func (m *AnalyticsRepository) InsertEvents(ctx context.Context, events []*models.AnalyticsEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *AnalyticsRepository) FindEvents(ctx context.Context, filter *models.EventFilter, params *utils.PaginationParams) ([]*models.AnalyticsEvent, int64, error) {
	args := m.Called(ctx, filter, params)
	events, _ := args.Get(0).([]*models.AnalyticsEvent)
	return events, args.Get(1).(int64), args.Error(2)
}

func (m *AnalyticsRepository) CountEvents(ctx context.Context, filter *models.EventFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AnalyticsRepository) GroupByMetadata(ctx context.Context, filter *models.EventFilter, field, labelField string, limit int) ([]*models.GroupCount, error) {
	args := m.Called(ctx, filter, field, labelField, limit)
	groups, _ := args.Get(0).([]*models.GroupCount)
	return groups, args.Error(1)
}

func (m *AnalyticsRepository) CountDistinctSessions(ctx context.Context, filter *models.EventFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AnalyticsRepository) FindEventsBefore(ctx context.Context, cutoff string) ([]*models.AnalyticsEvent, error) {
	args := m.Called(ctx, cutoff)
	events, _ := args.Get(0).([]*models.AnalyticsEvent)
	return events, args.Error(1)
}

func (m *AnalyticsRepository) DeleteEventsBefore(ctx context.Context, cutoff string) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AnalyticsRepository) DeleteEvents(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}
