// Package intention 记录用户提交的意图，并把它们交给外部代码生成方。
package intention

import (
	"context"
	"time"

	"IntentCode/backend/go/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store defines persistence for intention records.
type Store interface {
	Create(ctx context.Context, rec *models.IntentionRecord) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.IntentionRecord, error)
}

// MongoStore is an implementation of Store using MongoDB.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a new MongoStore.
func NewMongoStore(db *mongo.Database, collectionName string) *MongoStore {
	return &MongoStore{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the (user_id, submitted_at) index used by ListByUser.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "submitted_at", Value: -1}},
	})
	return err
}

// Create inserts a new intention record.
func (s *MongoStore) Create(ctx context.Context, rec *models.IntentionRecord) error {
	_, err := s.collection.InsertOne(ctx, rec)
	return err
}

// MarkFailed records that the hand-off for an intention failed.
func (s *MongoStore) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status": models.IntentionFailed,
			"error":  reason,
		},
	})
	return err
}

// MarkCompleted records that the generated files were written back.
func (s *MongoStore) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       models.IntentionCompleted,
			"completed_at": at,
		},
	})
	return err
}

// ListByUser returns the user's most recent intentions, newest first.
func (s *MongoStore) ListByUser(ctx context.Context, userID string, limit int64) ([]models.IntentionRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "submitted_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.IntentionRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
