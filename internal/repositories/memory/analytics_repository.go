package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"storefront/internal/models"
	"storefront/internal/repositories/interfaces"
	"storefront/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnalyticsRepository keeps events in process memory. It backs local
// development (DATABASE_DRIVER=memory) and tests, and mirrors the query
// semantics of the MongoDB repository.
type AnalyticsRepository struct {
	mu     sync.RWMutex
	events []*models.AnalyticsEvent
}

var _ interfaces.AnalyticsRepository = (*AnalyticsRepository)(nil)

func NewAnalyticsRepository() *AnalyticsRepository {
	return &AnalyticsRepository{}
}

// Len returns the number of stored events.
func (r *AnalyticsRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// All returns copies of the stored events in insertion order.
func (r *AnalyticsRepository) All() []models.AnalyticsEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AnalyticsEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out
}

func (r *AnalyticsRepository) InsertEvents(ctx context.Context, events []*models.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range events {
		if event.ObjectID.IsZero() {
			event.ObjectID = primitive.NewObjectID()
		}
		stored := *event
		r.events = append(r.events, &stored)
	}
	return nil
}

func (r *AnalyticsRepository) FindEvents(ctx context.Context, filter *models.EventFilter, params *utils.PaginationParams) ([]*models.AnalyticsEvent, int64, error) {
	matched, err := r.match(filter)
	if err != nil {
		return nil, 0, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := sortValue(matched[i], params.Sort), sortValue(matched[j], params.Sort)
		if params.Order == "asc" {
			return a < b
		}
		return a > b
	})

	total := int64(len(matched))
	start := params.GetSkip()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.GetLimit()
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], total, nil
}

func (r *AnalyticsRepository) CountEvents(ctx context.Context, filter *models.EventFilter) (int64, error) {
	matched, err := r.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (r *AnalyticsRepository) GroupByMetadata(ctx context.Context, filter *models.EventFilter, field, labelField string, limit int) ([]*models.GroupCount, error) {
	matched, err := r.match(filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*models.GroupCount)
	for _, event := range matched {
		key := event.MetadataString(field)
		if key == "" {
			continue
		}
		group, ok := groups[key]
		if !ok {
			group = &models.GroupCount{Key: key}
			if labelField != "" {
				group.Label = event.MetadataString(labelField)
			}
			groups[key] = group
		}
		group.Count++
	}

	results := make([]*models.GroupCount, 0, len(groups))
	for _, group := range groups {
		results = append(results, group)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Key < results[j].Key
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *AnalyticsRepository) CountDistinctSessions(ctx context.Context, filter *models.EventFilter) (int64, error) {
	matched, err := r.match(filter)
	if err != nil {
		return 0, err
	}

	sessions := make(map[string]struct{})
	for _, event := range matched {
		if event.SessionID != "" {
			sessions[event.SessionID] = struct{}{}
		}
	}
	return int64(len(sessions)), nil
}

func (r *AnalyticsRepository) FindEventsBefore(ctx context.Context, cutoff string) ([]*models.AnalyticsEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*models.AnalyticsEvent
	for _, event := range r.events {
		if event.Timestamp < cutoff {
			copied := *event
			expired = append(expired, &copied)
		}
	}
	sort.SliceStable(expired, func(i, j int) bool { return expired[i].Timestamp < expired[j].Timestamp })
	return expired, nil
}

func (r *AnalyticsRepository) DeleteEventsBefore(ctx context.Context, cutoff string) (int64, error) {
	return r.deleteWhere(func(e *models.AnalyticsEvent) bool { return e.Timestamp < cutoff }), nil
}

func (r *AnalyticsRepository) DeleteEvents(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	set := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return r.deleteWhere(func(e *models.AnalyticsEvent) bool {
		_, ok := set[e.ObjectID]
		return ok
	}), nil
}

func (r *AnalyticsRepository) deleteWhere(pred func(*models.AnalyticsEvent) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var deleted int64
	for _, event := range r.events {
		if pred(event) {
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	r.events = kept
	return deleted
}

func (r *AnalyticsRepository) match(filter *models.EventFilter) ([]*models.AnalyticsEvent, error) {
	var labelPattern *regexp.Regexp
	if filter != nil && filter.ButtonLabelPattern != "" {
		var err error
		labelPattern, err = regexp.Compile("(?i)" + filter.ButtonLabelPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid button label pattern: %w", err)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.AnalyticsEvent, 0, len(r.events))
	for _, event := range r.events {
		if filter != nil {
			if filter.StartDate != "" && event.Timestamp < filter.StartDate {
				continue
			}
			if filter.EndDate != "" && event.Timestamp > filter.EndDate {
				continue
			}
			if len(filter.EventTypes) > 0 && !containsType(filter.EventTypes, event.EventType) {
				continue
			}
			if labelPattern != nil && !labelPattern.MatchString(event.MetadataString(models.MetaButtonLabel)) {
				continue
			}
		}
		matched = append(matched, event)
	}
	return matched, nil
}

func containsType(types []models.EventType, t models.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func sortValue(e *models.AnalyticsEvent, field string) string {
	switch field {
	case "eventType":
		return string(e.EventType)
	case "sessionId":
		return e.SessionID
	default:
		return e.Timestamp
	}
}
