package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the primary node
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		// Disconnect if ping fails
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	fmt.Println("Successfully connected to MongoDB!")

	return client, db, nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	fmt.Println("MongoDB connection closed.")
	return nil
}

// EnsureIndexes creates the unique indexes the write paths rely on for their
// duplicate rejections: one rating per (item, rater), one favorite per
// (user, item), one report per (reporter, target, category). Also indexes
// the fields the sweep and list queries filter on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	specs := map[string][]mongo.IndexModel{
		"ratings": {
			{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "rater_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "rated_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		"favorites": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}}, Options: unique},
		},
		"reports": {
			{Keys: bson.D{{Key: "reporter_id", Value: 1}, {Key: "target_user_id", Value: 1}, {Key: "category", Value: 1}}, Options: unique},
		},
		"items": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "pickup_deadline", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		"message_threads": {
			{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "buyer_id", Value: 1}, {Key: "seller_id", Value: 1}}, Options: unique},
		},
		"messages": {
			{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for collection, models := range specs {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}
	return nil
}
