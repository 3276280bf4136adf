package mongodb

import (
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildEventFilter_Empty(t *testing.T) {
	assert.Empty(t, buildEventFilter(nil))
	assert.Empty(t, buildEventFilter(&models.EventFilter{}))
}

func TestBuildEventFilter_RangeAndSingleType(t *testing.T) {
	filter := buildEventFilter(&models.EventFilter{
		StartDate:  "2024-01-01T00:00:00.000Z",
		EndDate:    "2024-01-31T23:59:59.999Z",
		EventTypes: []models.EventType{models.EventTypePageView},
	})

	assert.Equal(t, bson.M{
		"$gte": "2024-01-01T00:00:00.000Z",
		"$lte": "2024-01-31T23:59:59.999Z",
	}, filter["timestamp"])
	assert.Equal(t, models.EventTypePageView, filter["eventType"])
}

func TestBuildEventFilter_MultipleTypesAndLabelPattern(t *testing.T) {
	filter := buildEventFilter(&models.EventFilter{
		EventTypes:         models.ProductViewEventTypes,
		ButtonLabelPattern: "DM.*Order",
	})

	assert.Equal(t, bson.M{"$in": models.ProductViewEventTypes}, filter["eventType"])
	assert.Equal(t, bson.M{"$regex": "DM.*Order", "$options": "i"}, filter["metadata.buttonLabel"])
	assert.NotContains(t, filter, "timestamp")
}

func TestGroupByMetadataPipeline(t *testing.T) {
	pipeline := groupByMetadataPipeline(&models.EventFilter{
		EventTypes: models.ProductViewEventTypes,
	}, models.MetaProductID, models.MetaProductName, 10)

	require.Len(t, pipeline, 4)

	match := pipeline[0][0].Value.(bson.M)
	assert.Equal(t, bson.M{"$type": "string", "$ne": ""}, match["metadata.productId"])

	group := pipeline[1][0].Value.(bson.M)
	assert.Equal(t, "$metadata.productId", group["_id"])
	assert.Equal(t, bson.M{"$first": "$metadata.productName"}, group["label"])

	assert.Equal(t, "$limit", pipeline[3][0].Key)
	assert.Equal(t, int64(10), pipeline[3][0].Value)
}

func TestGroupByMetadataPipeline_NoLabelNoLimit(t *testing.T) {
	pipeline := groupByMetadataPipeline(nil, models.MetaCategory, "", 0)

	require.Len(t, pipeline, 3)
	group := pipeline[1][0].Value.(bson.M)
	assert.NotContains(t, group, "label")
}
