package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pawsafe/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdate(t *testing.T) {
	u := buildUpdate([]storage.Update{
		storage.Set("lastMessagePreview", "hi"),
		storage.Set("readBy", []string{"a"}),
		storage.ArrayRemove("deletedBy", "b"),
		storage.ArrayRemove("deletedBy", "c"),
		storage.ArrayUnion("likes", "x"),
		storage.Unset("archivedAt"),
	})

	assert.Equal(t, bson.M{"lastMessagePreview": "hi", "readBy": []any{"a"}}, u["$set"])
	assert.Equal(t, bson.M{"deletedBy": bson.M{"$in": bson.A{"b", "c"}}}, u["$pull"])
	assert.Equal(t, bson.M{"likes": bson.M{"$each": bson.A{"x"}}}, u["$addToSet"])
	assert.Equal(t, bson.M{"archivedAt": ""}, u["$unset"])
}

func TestBuildUpdateOmitsEmptyOperators(t *testing.T) {
	u := buildUpdate([]storage.Update{storage.ArrayUnion("readBy", "a")})
	require.Len(t, u, 1)
	assert.Contains(t, u, "$addToSet")
}

func TestBuildFilter(t *testing.T) {
	f := buildFilter([]storage.Filter{
		storage.ArrayContains("participants", "u1"),
		storage.In("status", "Open", "Resolved"),
	})
	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"participants": "u1"},
		bson.M{"status": bson.M{"$in": bson.A{"Open", "Resolved"}}},
	}}, f)

	assert.Equal(t, bson.M{}, buildFilter(nil))
}

func TestConditionFilter(t *testing.T) {
	f := conditionFilter("m1", []storage.Filter{storage.Eq("deleted", false)})
	assert.Equal(t, bson.M{
		"_id":  "m1",
		"$and": bson.A{bson.M{"deleted": false}},
	}, f)

	assert.Equal(t, bson.M{"_id": "m1"}, conditionFilter("m1", nil))
}

func TestFromBSON(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := fromBSON(bson.M{
		"_id":      "m1",
		"id":       "m1",
		"hidden":   bson.A{"a", "b"},
		"count":    int32(3),
		"big":      int64(4),
		"location": bson.D{{Key: "latitude", Value: 1.5}},
		"at":       primitive.NewDateTimeFromTime(ts),
		"nested":   bson.M{"list": bson.A{int32(1)}},
	})

	assert.NotContains(t, doc, "_id")
	assert.Equal(t, "m1", doc.ID())
	assert.Equal(t, []any{"a", "b"}, doc["hidden"])
	assert.Equal(t, float64(3), doc["count"])
	assert.Equal(t, float64(4), doc["big"])
	assert.Equal(t, map[string]any{"latitude": 1.5}, doc["location"])
	assert.Equal(t, ts.Format(time.RFC3339Nano), doc["at"])
	assert.Equal(t, map[string]any{"list": []any{float64(1)}}, doc["nested"])
}
