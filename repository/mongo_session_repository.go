package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollection = "import_sessions"

type MongoSessionRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoSessionRepository(db *mongo.Database, ttl time.Duration) *MongoSessionRepository {
	return &MongoSessionRepository{collection: db.Collection(sessionCollection), ttl: ttl}
}

type mongoSession struct {
	ID        string              `bson:"_id"`
	State     string              `bson:"state"`
	Batch     *models.ImportBatch `bson:"batch"`
	UpdatedAt time.Time           `bson:"updated_at"`
	ExpiresAt time.Time           `bson:"expires_at"`
}

// EnsureIndexes creates the TTL index that expires abandoned sessions.
func (r *MongoSessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create session ttl index: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) document(batch *models.ImportBatch) mongoSession {
	now := time.Now().UTC()
	return mongoSession{
		ID:        batch.ID,
		State:     string(batch.State),
		Batch:     batch,
		UpdatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
}

func (r *MongoSessionRepository) Save(ctx context.Context, batch *models.ImportBatch) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": batch.ID}, r.document(batch), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace session: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) SaveIfState(ctx context.Context, batch *models.ImportBatch, expected models.SubmissionState) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": batch.ID, "state": string(expected)}, r.document(batch))
	if err != nil {
		return fmt.Errorf("mongo replace session: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": batch.ID})
	if err != nil {
		return fmt.Errorf("mongo count session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStateConflict
}

func (r *MongoSessionRepository) Get(ctx context.Context, id string) (*models.ImportBatch, error) {
	var doc mongoSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find session: %w", err)
	}
	if doc.Batch == nil {
		return nil, ErrNotFound
	}
	if doc.Batch.Committed == nil {
		doc.Batch.Committed = map[string]bool{}
	}
	return doc.Batch, nil
}

func (r *MongoSessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
