package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// kvDocument is the shape of one stored key-value pair in Mongo.
type kvDocument struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

// Mongo is a Store backed by a MongoDB collection of key-value documents.
type Mongo struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// NewMongo connects to MongoDB and returns a store over the given
// database and collection. A unique index on the key field enforces the
// one-value-per-key contract.
func NewMongo(ctx context.Context, connectionString, databaseName, collectionName string) (*Mongo, error) {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := mongoClient.Database(databaseName).Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("create key index: %w", err)
	}

	return &Mongo{mongoClient: mongoClient, collection: collection}, nil
}

// Put stores value under key, replacing any previous value.
func (m *Mongo) Put(ctx context.Context, key, value string) error {
	filter := bson.M{"key": key}
	update := bson.M{"$set": kvDocument{Key: key, Value: value}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (m *Mongo) Get(ctx context.Context, key string) (string, error) {
	var doc kvDocument
	err := m.collection.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return doc.Value, nil
}

// ListByPrefix returns up to limit keys starting with prefix, ordered by key.
func (m *Mongo) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	filter := bson.M{"key": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	findOpts := options.Find().
		SetProjection(bson.M{"key": 1, "_id": 0}).
		SetSort(bson.D{{Key: "key", Value: 1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc kvDocument
		if err := cursor.Decode(&doc); err != nil {
			continue // Skip invalid documents
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return keys, nil
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	if m.mongoClient == nil {
		return nil
	}
	return m.mongoClient.Disconnect(ctx)
}
