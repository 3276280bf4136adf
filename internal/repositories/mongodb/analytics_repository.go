package mongodb

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/repositories/interfaces"
	"storefront/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type analyticsRepository struct {
	eventsCollection *mongo.Collection
}

func NewAnalyticsRepository(db *mongo.Database, collection string) interfaces.AnalyticsRepository {
	return &analyticsRepository{
		eventsCollection: db.Collection(collection),
	}
}

// Event tracking
func (r *analyticsRepository) InsertEvents(ctx context.Context, events []*models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(events))
	for _, event := range events {
		if event.ObjectID.IsZero() {
			event.ObjectID = primitive.NewObjectID()
		}
		docs = append(docs, event)
	}

	// Unordered so one bad document does not stop the rest of the batch.
	_, err := r.eventsCollection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to insert analytics events: %w", err)
	}

	return nil
}

func (r *analyticsRepository) FindEvents(ctx context.Context, filter *models.EventFilter, params *utils.PaginationParams) ([]*models.AnalyticsEvent, int64, error) {
	query := buildEventFilter(filter)

	total, err := r.eventsCollection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	cursor, err := r.eventsCollection.Find(ctx, query, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*models.AnalyticsEvent, 0, params.GetLimit())
	if err := cursor.All(ctx, &events); err != nil {
		return nil, 0, fmt.Errorf("failed to decode events: %w", err)
	}

	return events, total, nil
}

// Aggregation
func (r *analyticsRepository) CountEvents(ctx context.Context, filter *models.EventFilter) (int64, error) {
	count, err := r.eventsCollection.CountDocuments(ctx, buildEventFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *analyticsRepository) GroupByMetadata(ctx context.Context, filter *models.EventFilter, field, labelField string, limit int) ([]*models.GroupCount, error) {
	cursor, err := r.eventsCollection.Aggregate(ctx, groupByMetadataPipeline(filter, field, labelField, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to group events by %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	results := make([]*models.GroupCount, 0, limit)
	for cursor.Next(ctx) {
		var group models.GroupCount
		if err := cursor.Decode(&group); err != nil {
			return nil, fmt.Errorf("failed to decode %s group: %w", field, err)
		}
		results = append(results, &group)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s groups: %w", field, err)
	}

	return results, nil
}

func (r *analyticsRepository) CountDistinctSessions(ctx context.Context, filter *models.EventFilter) (int64, error) {
	match := buildEventFilter(filter)
	match["sessionId"] = bson.M{"$type": "string", "$ne": ""}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$sessionId"}}},
		{{Key: "$count", Value: "sessions"}},
	}

	cursor, err := r.eventsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var result struct {
		Sessions int64 `bson:"sessions"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return 0, fmt.Errorf("failed to decode session count: %w", err)
		}
	}

	return result.Sessions, cursor.Err()
}

// Retention
func (r *analyticsRepository) FindEventsBefore(ctx context.Context, cutoff string) ([]*models.AnalyticsEvent, error) {
	cursor, err := r.eventsCollection.Find(ctx,
		bson.M{"timestamp": bson.M{"$lt": cutoff}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.AnalyticsEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode expired events: %w", err)
	}

	return events, nil
}

func (r *analyticsRepository) DeleteEventsBefore(ctx context.Context, cutoff string) (int64, error) {
	result, err := r.eventsCollection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *analyticsRepository) DeleteEvents(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.eventsCollection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return result.DeletedCount, nil
}

func buildEventFilter(f *models.EventFilter) bson.M {
	filter := bson.M{}
	if f == nil {
		return filter
	}

	timestamp := bson.M{}
	if f.StartDate != "" {
		timestamp["$gte"] = f.StartDate
	}
	if f.EndDate != "" {
		timestamp["$lte"] = f.EndDate
	}
	if len(timestamp) > 0 {
		filter["timestamp"] = timestamp
	}

	switch len(f.EventTypes) {
	case 0:
	case 1:
		filter["eventType"] = f.EventTypes[0]
	default:
		filter["eventType"] = bson.M{"$in": f.EventTypes}
	}

	if f.ButtonLabelPattern != "" {
		filter["metadata."+models.MetaButtonLabel] = bson.M{
			"$regex":   f.ButtonLabelPattern,
			"$options": "i",
		}
	}

	return filter
}

func groupByMetadataPipeline(filter *models.EventFilter, field, labelField string, limit int) mongo.Pipeline {
	key := "metadata." + field

	match := buildEventFilter(filter)
	match[key] = bson.M{"$type": "string", "$ne": ""}

	group := bson.M{
		"_id":   "$" + key,
		"count": bson.M{"$sum": 1},
	}
	if labelField != "" {
		group["label"] = bson.M{"$first": "$metadata." + labelField}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}

	return pipeline
}
