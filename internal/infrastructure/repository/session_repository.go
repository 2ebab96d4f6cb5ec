package repository

import (
	"context"
	"fmt"
	"time"

	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSessionRepository implements SessionStore using MongoDB.
type MongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a session repository over the sessions
// collection, with a secondary index on shop for the by-shop lookups.
func NewMongoSessionRepository(db *mongo.Database) ports.SessionStore {
	collection := db.Collection("sessions")
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "shop", Value: 1}},
	}
	_, _ = collection.Indexes().CreateOne(context.Background(), indexModel)
	return &MongoSessionRepository{collection: collection}
}

// Save upserts a session by id.
func (r *MongoSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": session.ID}
	update := bson.M{"$set": session}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// FindByID retrieves a session by id, nil when absent.
func (r *MongoSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %v", domain.ErrStoreUnavailable, err)
	}
	return &session, nil
}

// FindByShop retrieves all sessions for a shop under the given API key.
func (r *MongoSessionRepository) FindByShop(ctx context.Context, shop string, apiKey string) ([]*domain.Session, error) {
	filter := bson.M{"shop": shop, "api_key": apiKey}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: find sessions by shop: %v", domain.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var sessions []*domain.Session
	for cursor.Next(ctx) {
		var session domain.Session
		if err := cursor.Decode(&session); err != nil {
			return nil, fmt.Errorf("%w: decode session: %v", domain.ErrStoreUnavailable, err)
		}
		sessions = append(sessions, &session)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", domain.ErrStoreUnavailable, err)
	}
	return sessions, nil
}

// DeleteByShop removes every session for a shop, regardless of API key.
func (r *MongoSessionRepository) DeleteByShop(ctx context.Context, shop string) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"shop": shop}); err != nil {
		return fmt.Errorf("%w: delete sessions: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
