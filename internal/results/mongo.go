package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI        string
	Database   string
	Collection string

	// ConnectTimeout bounds connect + ping. Defaults to 10s
	ConnectTimeout time.Duration
}

// MongoStore writes summaries as documents into a MongoDB collection
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects, pings the primary and ensures a unique index on prediction_id
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping mongo: %w", err), client.Disconnect(ctx))
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "prediction_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create prediction_id index: %w", err), client.Disconnect(ctx))
	}

	return &MongoStore{client: client, coll: coll}, nil
}

// Insert writes summary as a single document
func (s *MongoStore) Insert(ctx context.Context, summary *detection.PredictionSummary) error {
	if _, err := s.coll.InsertOne(ctx, summary); err != nil {
		return fmt.Errorf("failed to insert prediction %s: %w", summary.PredictionID, err)
	}
	return nil
}

// Get loads the summary with the given prediction id
func (s *MongoStore) Get(ctx context.Context, predictionID string) (*detection.PredictionSummary, error) {
	var summary detection.PredictionSummary
	err := s.coll.FindOne(ctx, bson.M{"prediction_id": predictionID}).Decode(&summary)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction %s: %w", predictionID, err)
	}
	return &summary, nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
