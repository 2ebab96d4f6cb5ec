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

// MongoInstallationRepository implements InstallationStore using MongoDB.
type MongoInstallationRepository struct {
	collection *mongo.Collection
}

// NewMongoInstallationRepository creates an installation repository over
// the installations collection, keyed uniquely by shop.
func NewMongoInstallationRepository(db *mongo.Database) ports.InstallationStore {
	collection := db.Collection("installations")
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "shop", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = collection.Indexes().CreateOne(context.Background(), indexModel)
	return &MongoInstallationRepository{collection: collection}
}

// EnsureRegistered upserts the record with the registration flag set. The
// install timestamp is written only on insert, so repeating the call for an
// installed shop mutates nothing but the flag.
func (r *MongoInstallationRepository) EnsureRegistered(ctx context.Context, shop string) (bool, error) {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shop": shop}
	update := bson.M{
		"$set": bson.M{
			"shop":                shop,
			"webhooks_registered": true,
		},
		"$setOnInsert": bson.M{
			"installed_at": time.Now(),
		},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return false, fmt.Errorf("%w: ensure registered: %v", domain.ErrStoreUnavailable, err)
	}
	return true, nil
}

// MarkUninstalled clears the registration flag and stamps the uninstall
// time.
func (r *MongoInstallationRepository) MarkUninstalled(ctx context.Context, shop string) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shop": shop}
	update := bson.M{
		"$set": bson.M{
			"shop":                shop,
			"webhooks_registered": false,
			"uninstalled_at":      time.Now(),
		},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("%w: mark uninstalled: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get retrieves the installation record for a shop, nil when absent.
func (r *MongoInstallationRepository) Get(ctx context.Context, shop string) (*domain.Installation, error) {
	var installation domain.Installation
	err := r.collection.FindOne(ctx, bson.M{"shop": shop}).Decode(&installation)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get installation: %v", domain.ErrStoreUnavailable, err)
	}
	return &installation, nil
}
